package dispatch

import (
	"sync"
	"time"

	"github.com/poiesic/askq/core"
)

// Queue is an unbounded FIFO of questions shared by all workers.
// Enqueue never blocks; Dequeue waits up to a timeout.
type Queue struct {
	mu     sync.Mutex
	items  []core.Question
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends question.
func (q *Queue) Enqueue(question core.Question) {
	q.mu.Lock()
	q.items = append(q.items, question)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes and returns the oldest question, waiting up to timeout for
// one to arrive. It returns false on timeout.
func (q *Queue) Dequeue(timeout time.Duration) (core.Question, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if question, ok := q.pop(); ok {
			return question, true
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return q.pop()
		}
	}
}

// Len returns the number of waiting questions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (core.Question, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return core.Question{}, false
	}
	question := q.items[0]
	q.items[0] = core.Question{}
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	// Pass the wakeup on so another waiter picks up the remainder.
	if more {
		q.signal()
	}
	return question, true
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
