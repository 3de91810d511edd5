package mock

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/poiesic/askq/ai"
)

const (
	DefaultConversationID = "mock-conversation"
	DefaultParentID       = "mock-parent"
)

// MockEngine is a test double for ai.Engine.
// It is safe for concurrent use by several workers.
type MockEngine struct {
	// AskFunc is called by Ask if set.
	// If nil, the scripted steps are replayed.
	AskFunc func(ctx context.Context, req ai.Request) iter.Seq2[ai.Step, error]

	steps    []string
	failAt   int
	failErr  error
	delay    time.Duration
	gate     <-chan struct{}
	started  chan string
	mu       sync.Mutex
	calls    int
	requests []ai.Request
}

// NewMockEngine creates an engine that yields the given cumulative messages.
func NewMockEngine(steps ...string) *MockEngine {
	return &MockEngine{steps: steps, failAt: -1}
}

// WithError makes the engine yield err after n steps instead of finishing.
func (m *MockEngine) WithError(n int, err error) *MockEngine {
	m.failAt = n
	m.failErr = err
	return m
}

// WithDelay makes the engine sleep before every step.
func (m *MockEngine) WithDelay(d time.Duration) *MockEngine {
	m.delay = d
	return m
}

// WithGate makes every Ask block before its first step until gate is closed.
func (m *MockEngine) WithGate(gate <-chan struct{}) *MockEngine {
	m.gate = gate
	return m
}

// Started returns a channel that receives each question as Ask begins.
// The channel is buffered; questions are dropped once it is full.
func (m *MockEngine) Started() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started == nil {
		m.started = make(chan string, 64)
	}
	return m.started
}

// Ask replays the scripted steps.
func (m *MockEngine) Ask(ctx context.Context, req ai.Request) iter.Seq2[ai.Step, error] {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	started := m.started
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- req.Question:
		default:
		}
	}

	if m.AskFunc != nil {
		return m.AskFunc(ctx, req)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	return func(yield func(ai.Step, error) bool) {
		if m.gate != nil {
			select {
			case <-m.gate:
			case <-ctx.Done():
				yield(ai.Step{}, ctx.Err())
				return
			}
		}
		for i, message := range m.steps {
			if i == m.failAt {
				yield(ai.Step{}, m.failErr)
				return
			}
			if m.delay > 0 {
				time.Sleep(m.delay)
			}
			step := ai.Step{
				Message:        message,
				ConversationID: conversationID,
				ParentID:       DefaultParentID,
			}
			if !yield(step, nil) {
				return
			}
		}
		if m.failAt >= len(m.steps) {
			yield(ai.Step{}, m.failErr)
		}
	}
}

// CallCount returns the number of times Ask was called.
func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request passed to Ask.
func (m *MockEngine) Requests() []ai.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Request(nil), m.requests...)
}
