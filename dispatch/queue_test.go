package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/poiesic/askq/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	first := core.NewQuestion("first", "", "")
	second := core.NewQuestion("second", "", "")
	q.Enqueue(first)
	q.Enqueue(second)
	assert.Equal(t, 2, q.Len())

	got, ok := q.Dequeue(10 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, first, got)

	got, ok = q.Dequeue(10 * time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.Zero(t, q.Len())
}

func TestQueue_DequeueTimesOut(t *testing.T) {
	q := NewQueue()
	start := time.Now()
	_, ok := q.Dequeue(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueue_WakesWaiter(t *testing.T) {
	q := NewQueue()
	question := core.NewQuestion("late", "", "")

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(question)
	}()

	got, ok := q.Dequeue(time.Second)
	require.True(t, ok)
	assert.Equal(t, question.ID, got.ID)
}

func TestQueue_EachQuestionDeliveredOnce(t *testing.T) {
	q := NewQueue()
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[core.QuestionID]int)
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				question, ok := q.Dequeue(50 * time.Millisecond)
				if !ok {
					return
				}
				mu.Lock()
				seen[question.ID]++
				mu.Unlock()
			}
		}()
	}
	for range n {
		q.Enqueue(core.NewQuestion("q", "", ""))
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "question %s", id)
	}
}
