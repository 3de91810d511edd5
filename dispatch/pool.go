package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/credential"
)

// publishAttempts bounds retries of a publish that hit ErrLockTimeout.
const publishAttempts = 3

// Pool runs a fixed number of long-lived workers on an ants pool. Each
// worker owns a question from dequeue to terminal fragment.
type Pool struct {
	queue          *Queue
	registry       *Registry
	provider       ai.Provider
	credentials    *credential.Holder
	size           int
	dequeueTimeout time.Duration
	retryPause     time.Duration
	askTimeout     time.Duration
	gracePeriod    time.Duration
	monitor        Monitor
	logger         *slog.Logger

	workers *ants.Pool
	active  atomic.Bool
	running atomic.Int32
}

// Start spawns the workers and returns immediately.
func (p *Pool) Start() error {
	if !p.active.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	workers, err := ants.NewPool(p.size)
	if err != nil {
		p.active.Store(false)
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.workers = workers

	for i := range p.size {
		if err := workers.Submit(func() { p.work(i) }); err != nil {
			p.active.Store(false)
			workers.Release()
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}
	}
	p.logger.Info("worker pool started", "workers", p.size)
	return nil
}

// Stop tells workers to exit after their current question and waits up to
// the grace period for them. In-flight engine calls are not cancelled.
func (p *Pool) Stop() {
	if !p.active.CompareAndSwap(true, false) {
		return
	}
	if err := p.workers.ReleaseTimeout(p.gracePeriod); err != nil {
		p.logger.Warn("workers still running after grace period",
			"running", p.running.Load(), "grace", p.gracePeriod, "err", err)
		return
	}
	p.logger.Info("worker pool stopped")
}

// Running returns the number of live worker loops.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

func (p *Pool) work(worker int) {
	p.running.Add(1)
	defer p.running.Add(-1)

	logger := p.logger.With("worker", worker)
	for p.active.Load() {
		if err := p.iterate(worker, logger); err != nil {
			logger.Error("worker iteration failed", "err", err)
			time.Sleep(p.retryPause)
		}
	}
}

// iterate handles at most one question. Panics are converted to errors.
func (p *Pool) iterate(worker int, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	question, ok := p.queue.Dequeue(p.dequeueTimeout)
	if !ok {
		return nil
	}
	p.monitor.Started(question.ID, worker)
	return p.answer(question, logger.With("question", question.ID))
}

// answer streams one question's answer into the registry as deltas followed
// by a terminal fragment.
func (p *Pool) answer(question core.Question, logger *slog.Logger) error {
	ctx := context.Background()
	start := time.Now()
	terminated := false
	defer func() {
		if r := recover(); r != nil {
			if !terminated {
				err := fmt.Errorf("%w: %v", ErrWorkerPanic, r)
				p.fail(ctx, question.ID, err, logger)
				p.monitor.Answered(question.ID, time.Since(start), err)
			}
			panic(r)
		}
	}()

	engine, err := p.provider.NewEngine(p.credentials.Current())
	if err != nil {
		terminated = true
		err = fmt.Errorf("failed to create engine: %w", err)
		p.fail(ctx, question.ID, err, logger)
		p.monitor.Answered(question.ID, time.Since(start), err)
		return nil
	}

	req := ai.Request{
		Question:       question.Text,
		ConversationID: question.ConversationID,
		ParentID:       question.ParentID,
		Timeout:        p.askTimeout,
	}

	var (
		cursor         int
		conversationID string
		parentID       string
	)
	for step, err := range engine.Ask(ctx, req) {
		if err != nil {
			terminated = true
			p.fail(ctx, question.ID, err, logger)
			p.monitor.Answered(question.ID, time.Since(start), err)
			return nil
		}

		var delta string
		if len(step.Message) >= cursor {
			delta = step.Message[cursor:]
		}
		cursor = len(step.Message)
		conversationID, parentID = step.ConversationID, step.ParentID

		if err := p.publish(ctx, question.ID, core.Delta(delta, conversationID, parentID)); err != nil {
			terminated = true
			p.fail(ctx, question.ID, err, logger)
			p.monitor.Answered(question.ID, time.Since(start), err)
			return err
		}
	}

	terminated = true
	if err := p.publish(ctx, question.ID, core.Done(conversationID, parentID)); err != nil {
		p.fail(ctx, question.ID, err, logger)
		p.monitor.Answered(question.ID, time.Since(start), err)
		return err
	}
	p.monitor.Answered(question.ID, time.Since(start), nil)
	logger.Debug("question answered", "conversation", conversationID, "length", cursor)
	return nil
}

// fail publishes a failed terminal fragment for id. Lock timeouts are
// retried after the retry pause until the fragment lands or the pool stops,
// since a question without a terminal fragment is never finished.
func (p *Pool) fail(ctx context.Context, id core.QuestionID, cause error, logger *slog.Logger) {
	logger.Error("answering failed", "err", cause)
	for {
		err := p.publish(ctx, id, core.Failed(cause))
		if err == nil {
			return
		}
		if !errors.Is(err, ErrLockTimeout) || !p.active.Load() {
			logger.Error("failed to publish failure", "err", err)
			return
		}
		logger.Warn("retrying failure publish", "err", err)
		time.Sleep(p.retryPause)
	}
}

func (p *Pool) publish(ctx context.Context, id core.QuestionID, frag core.Fragment) error {
	var err error
	for range publishAttempts {
		err = p.registry.Publish(ctx, id, frag)
		if err == nil {
			p.monitor.Published(id, frag)
			return nil
		}
		if !errors.Is(err, ErrLockTimeout) {
			return err
		}
	}
	return fmt.Errorf("publish for %s: %w", id, err)
}
