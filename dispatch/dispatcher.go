// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/credential"
)

const (
	DefaultPoolSize       = 4
	DefaultBufferCapacity = 64
	DefaultDequeueTimeout = time.Second
	DefaultLockTimeout    = time.Second
	DefaultGracePeriod    = 5 * time.Second
	DefaultRetryPause     = time.Second
	DefaultAskTimeout     = 10 * time.Second
)

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	Queued   int           `json:"queued"`
	Workers  int           `json:"workers"`
	Running  int           `json:"running"`
	Registry RegistryStats `json:"registry"`
}

// Dispatcher accepts questions, answers them on a worker pool and serves
// the partial answers to pollers.
type Dispatcher struct {
	queue    *Queue
	registry *Registry
	pool     *Pool
	stopped  atomic.Bool

	poolSize       int
	bufferCapacity int
	dequeueTimeout time.Duration
	lockTimeout    time.Duration
	gracePeriod    time.Duration
	retryPause     time.Duration
	askTimeout     time.Duration
	monitor        Monitor
	logger         *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithPoolSize sets the number of workers.
// Default is DefaultPoolSize, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		d.poolSize = size
		return nil
	}
}

// WithBufferCapacity sets how many unpolled fragments a question may
// accumulate before its worker blocks.
func WithBufferCapacity(capacity int) Option {
	return func(d *Dispatcher) error {
		if capacity < 1 {
			return fmt.Errorf("%w: buffer capacity %d", ErrInvalidOption, capacity)
		}
		d.bufferCapacity = capacity
		return nil
	}
}

// WithDequeueTimeout sets how long an idle worker waits for a question
// before rechecking whether it should exit.
func WithDequeueTimeout(timeout time.Duration) Option {
	return durationOption("dequeue timeout", timeout, func(d *Dispatcher) { d.dequeueTimeout = timeout })
}

// WithLockTimeout bounds registry lock acquisition.
func WithLockTimeout(timeout time.Duration) Option {
	return durationOption("lock timeout", timeout, func(d *Dispatcher) { d.lockTimeout = timeout })
}

// WithGracePeriod bounds how long Stop waits for workers.
func WithGracePeriod(grace time.Duration) Option {
	return durationOption("grace period", grace, func(d *Dispatcher) { d.gracePeriod = grace })
}

// WithRetryPause sets how long a worker sleeps after a failed iteration.
func WithRetryPause(pause time.Duration) Option {
	return durationOption("retry pause", pause, func(d *Dispatcher) { d.retryPause = pause })
}

// WithAskTimeout sets the engine idle timeout passed with every question.
func WithAskTimeout(timeout time.Duration) Option {
	return durationOption("ask timeout", timeout, func(d *Dispatcher) { d.askTimeout = timeout })
}

// WithMonitor installs a Monitor.
func WithMonitor(monitor Monitor) Option {
	return func(d *Dispatcher) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		d.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

func durationOption(name string, value time.Duration, set func(*Dispatcher)) Option {
	return func(d *Dispatcher) error {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidOption, name, value)
		}
		set(d)
		return nil
	}
}

// New creates a dispatcher. Engines are built from provider with the
// credential snapshot current at dequeue time.
func New(provider ai.Provider, credentials *credential.Holder, opts ...Option) (*Dispatcher, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if credentials == nil {
		return nil, ErrCredentialsRequired
	}

	d := &Dispatcher{
		poolSize:       DefaultPoolSize,
		bufferCapacity: DefaultBufferCapacity,
		dequeueTimeout: DefaultDequeueTimeout,
		lockTimeout:    DefaultLockTimeout,
		gracePeriod:    DefaultGracePeriod,
		retryPause:     DefaultRetryPause,
		askTimeout:     DefaultAskTimeout,
		monitor:        noopMonitor{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	d.queue = NewQueue()
	d.registry = NewRegistry(d.bufferCapacity, d.lockTimeout, d.logger.With("component", "registry"))
	d.pool = &Pool{
		queue:          d.queue,
		registry:       d.registry,
		provider:       provider,
		credentials:    credentials,
		size:           d.poolSize,
		dequeueTimeout: d.dequeueTimeout,
		retryPause:     d.retryPause,
		askTimeout:     d.askTimeout,
		gracePeriod:    d.gracePeriod,
		monitor:        d.monitor,
		logger:         d.logger.With("component", "pool"),
	}
	return d, nil
}

// Start launches the worker pool.
func (d *Dispatcher) Start() error {
	if d.stopped.Load() {
		return ErrStopped
	}
	return d.pool.Start()
}

// Stop stops accepting questions and stops the worker pool, waiting at most
// the grace period. Questions still queued are abandoned.
func (d *Dispatcher) Stop() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	d.pool.Stop()
	if n := d.queue.Len(); n > 0 {
		d.logger.Warn("abandoning queued questions", "count", n)
	}
}

// Submit queues a question and returns its id without waiting for any
// answer. Text is not validated here.
func (d *Dispatcher) Submit(text, conversationID, parentID string) (core.QuestionID, error) {
	if d.stopped.Load() {
		return "", ErrStopped
	}
	question := core.NewQuestion(text, conversationID, parentID)
	d.queue.Enqueue(question)
	d.monitor.Queued(question.ID)
	d.logger.Debug("question queued", "question", question.ID, "conversation", conversationID)
	return question.ID, nil
}

// Poll returns whatever part of the answer has arrived since the last
// poll. Unknown or already finished ids yield an empty unfinished answer.
func (d *Dispatcher) Poll(ctx context.Context, id core.QuestionID) (core.Answer, error) {
	answer, err := d.registry.Drain(ctx, id)
	if err != nil {
		return core.Answer{}, err
	}
	d.monitor.Polled(id, answer)
	return answer, nil
}

// Stats reports queue, pool and registry counters.
func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	registry, err := d.registry.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Queued:   d.queue.Len(),
		Workers:  d.poolSize,
		Running:  d.pool.Running(),
		Registry: registry,
	}, nil
}
