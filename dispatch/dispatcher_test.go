package dispatch

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/mock"
	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, provider ai.Provider, opts ...Option) (*Dispatcher, *credential.Holder) {
	t.Helper()
	holder := credential.NewHolder("test-token")
	opts = append([]Option{
		WithPoolSize(2),
		WithDequeueTimeout(10 * time.Millisecond),
		WithRetryPause(10 * time.Millisecond),
		WithGracePeriod(time.Second),
	}, opts...)
	d, err := New(provider, holder, opts...)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(d.Stop)
	return d, holder
}

// pollUntilFinished polls id until the answer finishes, concatenating text
// the way a client would.
func pollUntilFinished(t *testing.T, d *Dispatcher, id core.QuestionID) core.Answer {
	t.Helper()
	var (
		total core.Answer
		text  strings.Builder
	)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		answer, err := d.Poll(context.Background(), id)
		require.NoError(t, err)
		text.WriteString(answer.Text)
		if answer.ConversationID != "" {
			total.ConversationID = answer.ConversationID
		}
		if answer.ParentID != "" {
			total.ParentID = answer.ParentID
		}
		if answer.Finished {
			total.Text = text.String()
			total.Finished = true
			total.Error = answer.Error
			return total
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("question %s did not finish", id)
	return total
}

func TestNew_Validation(t *testing.T) {
	provider := mock.NewMockProvider(mock.NewMockEngine())

	_, err := New(nil, credential.NewHolder(""))
	assert.ErrorIs(t, err, ErrProviderRequired)

	_, err = New(provider, nil)
	assert.ErrorIs(t, err, ErrCredentialsRequired)

	_, err = New(provider, credential.NewHolder(""), WithDequeueTimeout(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New(provider, credential.NewHolder(""), WithBufferCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidOption)

	d, err := New(provider, credential.NewHolder(""), WithPoolSize(-3))
	require.NoError(t, err)
	assert.Equal(t, 1, d.poolSize)
}

func TestDispatcher_Hello(t *testing.T) {
	engine := mock.NewMockEngine("H", "He", "Hello")
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine))

	id, err := d.Submit("say hello", "", "")
	require.NoError(t, err)

	answer := pollUntilFinished(t, d, id)
	assert.Equal(t, "Hello", answer.Text)
	assert.Equal(t, mock.DefaultConversationID, answer.ConversationID)
	assert.Equal(t, mock.DefaultParentID, answer.ParentID)
	assert.Empty(t, answer.Error)

	// The finished answer was reclaimed.
	again, err := d.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.Answer{}, again)

	require.Len(t, engine.Requests(), 1)
	assert.Equal(t, "say hello", engine.Requests()[0].Question)
	assert.Equal(t, DefaultAskTimeout, engine.Requests()[0].Timeout)
}

func TestDispatcher_ForwardsConversation(t *testing.T) {
	engine := mock.NewMockEngine("ok")
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine))

	id, err := d.Submit("next", "c1", "p1")
	require.NoError(t, err)

	answer := pollUntilFinished(t, d, id)
	assert.Equal(t, "c1", answer.ConversationID)

	req := engine.Requests()[0]
	assert.Equal(t, "c1", req.ConversationID)
	assert.Equal(t, "p1", req.ParentID)
}

func TestDispatcher_IsolatesConcurrentQuestions(t *testing.T) {
	engine := mock.NewMockEngine()
	engine.AskFunc = func(_ context.Context, req ai.Request) iter.Seq2[ai.Step, error] {
		return func(yield func(ai.Step, error) bool) {
			var message string
			for _, word := range strings.Fields(req.Question) {
				message += word + " "
				time.Sleep(time.Millisecond)
				if !yield(ai.Step{Message: message, ConversationID: req.Question}, nil) {
					return
				}
			}
		}
	}
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine))

	first, err := d.Submit("alpha beta gamma", "", "")
	require.NoError(t, err)
	second, err := d.Submit("one two three four", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]core.Answer, 2)
	for i, id := range []core.QuestionID{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = pollUntilFinished(t, d, id)
		}()
	}
	wg.Wait()

	assert.Equal(t, "alpha beta gamma ", results[0].Text)
	assert.Equal(t, "alpha beta gamma", results[0].ConversationID)
	assert.Equal(t, "one two three four ", results[1].Text)
	assert.Equal(t, "one two three four", results[1].ConversationID)
}

func TestDispatcher_FailureAfterPartial(t *testing.T) {
	engine := mock.NewMockEngine("partial").WithError(1, errors.New("upstream exploded"))
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine))

	id, err := d.Submit("q", "", "")
	require.NoError(t, err)

	answer := pollUntilFinished(t, d, id)
	assert.Equal(t, "partial", answer.Text)
	assert.True(t, answer.Finished)
	assert.Equal(t, "upstream exploded", answer.Error)
	assert.Equal(t, mock.DefaultConversationID, answer.ConversationID)
}

func TestDispatcher_EngineCreationFailure(t *testing.T) {
	provider := mock.NewMockProvider(nil)
	provider.NewEngineFunc = func(string) (ai.Engine, error) {
		return nil, ai.ErrCredentialRequired
	}
	d, _ := newTestDispatcher(t, provider)

	id, err := d.Submit("q", "", "")
	require.NoError(t, err)

	answer := pollUntilFinished(t, d, id)
	assert.True(t, answer.Failed())
	assert.Contains(t, answer.Error, ai.ErrCredentialRequired.Error())
	assert.Empty(t, answer.Text)
}

func TestDispatcher_RewrittenMessage(t *testing.T) {
	engine := mock.NewMockEngine("Hello", "Hi", "Hi!")
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine))

	id, err := d.Submit("q", "", "")
	require.NoError(t, err)

	answer := pollUntilFinished(t, d, id)
	assert.Equal(t, "Hello!", answer.Text)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	engine := mock.NewMockEngine("fine")
	provider := mock.NewMockProvider(engine)
	var calls int
	var mu sync.Mutex
	provider.NewEngineFunc = func(string) (ai.Engine, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			panic("engine constructor blew up")
		}
		return engine, nil
	}
	d, _ := newTestDispatcher(t, provider, WithPoolSize(1))

	broken, err := d.Submit("first", "", "")
	require.NoError(t, err)
	answer := pollUntilFinished(t, d, broken)
	assert.True(t, answer.Failed())
	assert.Contains(t, answer.Error, "engine constructor blew up")

	ok, err := d.Submit("second", "", "")
	require.NoError(t, err)
	answer = pollUntilFinished(t, d, ok)
	assert.Equal(t, "fine", answer.Text)
	assert.Empty(t, answer.Error)
}

func TestDispatcher_UsesCurrentCredential(t *testing.T) {
	provider := mock.NewMockProvider(mock.NewMockEngine("x"))
	d, holder := newTestDispatcher(t, provider, WithPoolSize(1))

	id, err := d.Submit("q1", "", "")
	require.NoError(t, err)
	pollUntilFinished(t, d, id)

	holder.Set("rotated")
	id, err = d.Submit("q2", "", "")
	require.NoError(t, err)
	pollUntilFinished(t, d, id)

	assert.Equal(t, []string{"test-token", "rotated"}, provider.Credentials())
}

func TestDispatcher_Backpressure(t *testing.T) {
	steps := make([]string, 0, 100)
	var message string
	for range 100 {
		message += "x"
		steps = append(steps, message)
	}
	engine := mock.NewMockEngine(steps...)
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine), WithPoolSize(1))

	id, err := d.Submit("q", "", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, err := d.Stats(context.Background())
		return err == nil && stats.Registry.Pending == DefaultBufferCapacity
	}, 2*time.Second, 5*time.Millisecond)

	// The worker is parked on the full buffer.
	time.Sleep(20 * time.Millisecond)
	stats, err := d.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultBufferCapacity, stats.Registry.Pending)
	assert.Equal(t, 1, stats.Registry.Streaming)

	answer := pollUntilFinished(t, d, id)
	assert.Equal(t, message, answer.Text)
}

func TestDispatcher_UnknownID(t *testing.T) {
	d, _ := newTestDispatcher(t, mock.NewMockProvider(mock.NewMockEngine()))

	answer, err := d.Poll(context.Background(), core.NewQuestionID())
	require.NoError(t, err)
	assert.Equal(t, core.Answer{}, answer)
}

func TestDispatcher_StopBoundedByGrace(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	engine := mock.NewMockEngine("late").WithGate(gate)
	started := engine.Started()

	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine), WithPoolSize(1), WithGracePeriod(50*time.Millisecond))

	_, err := d.Submit("stuck", "", "")
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the question")
	}

	begin := time.Now()
	d.Stop()
	assert.Less(t, time.Since(begin), time.Second)

	_, err = d.Submit("after stop", "", "")
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, d.Start(), ErrStopped)
}

func TestDispatcher_Stats(t *testing.T) {
	provider := mock.NewMockProvider(mock.NewMockEngine())
	d, err := New(provider, credential.NewHolder(""), WithPoolSize(3))
	require.NoError(t, err)

	_, err = d.Submit("waiting", "", "")
	require.NoError(t, err)

	stats, err := d.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 3, stats.Workers)
	assert.Zero(t, stats.Running)

	require.NoError(t, d.Start())
	defer d.Stop()
	assert.ErrorIs(t, d.Start(), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return d.pool.Running() == 3 }, time.Second, 5*time.Millisecond)
}

// recordingMonitor counts lifecycle events.
type recordingMonitor struct {
	mu        sync.Mutex
	queued    int
	started   int
	published int
	answered  []error
	finished  int
}

func (m *recordingMonitor) Queued(core.QuestionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued++
}

func (m *recordingMonitor) Started(core.QuestionID, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMonitor) Published(core.QuestionID, core.Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
}

func (m *recordingMonitor) Answered(_ core.QuestionID, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, err)
}

func (m *recordingMonitor) Polled(_ core.QuestionID, answer core.Answer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if answer.Finished {
		m.finished++
	}
}

func TestDispatcher_Monitor(t *testing.T) {
	monitor := &recordingMonitor{}
	engine := mock.NewMockEngine("a", "ab")
	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine), WithMonitor(monitor))

	ok, err := d.Submit("q1", "", "")
	require.NoError(t, err)
	pollUntilFinished(t, d, ok)

	// Answered fires after the terminal fragment is published.
	require.Eventually(t, func() bool {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		return len(monitor.answered) == 1
	}, time.Second, 5*time.Millisecond)

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	assert.Equal(t, 1, monitor.queued)
	assert.Equal(t, 1, monitor.started)
	assert.Equal(t, 3, monitor.published)
	assert.Equal(t, []error{nil}, monitor.answered)
	assert.Equal(t, 1, monitor.finished)
}

func TestLogMonitor(t *testing.T) {
	var m Monitor = NewLogMonitor(nil)
	id := core.NewQuestionID()
	m.Queued(id)
	m.Started(id, 0)
	m.Published(id, core.Delta("x", "", ""))
	m.Answered(id, time.Millisecond, nil)
	m.Answered(id, time.Millisecond, errors.New("boom"))
	m.Polled(id, core.Answer{Finished: true})
}

func TestDispatcher_LockTimeoutStillFinishes(t *testing.T) {
	gate := make(chan struct{})
	engine := mock.NewMockEngine("a", "ab").WithGate(gate)
	started := engine.Started()

	d, _ := newTestDispatcher(t, mock.NewMockProvider(engine),
		WithPoolSize(1),
		WithLockTimeout(20*time.Millisecond),
	)

	id, err := d.Submit("hello", "", "")
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the question")
	}

	// Hold the registry lock past every publish attempt for the first delta.
	require.NoError(t, d.registry.lock.Acquire(context.Background(), 1))
	close(gate)
	time.Sleep(150 * time.Millisecond)
	d.registry.lock.Release(1)

	answer := pollUntilFinished(t, d, id)
	assert.True(t, answer.Finished)
	assert.Contains(t, answer.Error, ErrLockTimeout.Error())
}
