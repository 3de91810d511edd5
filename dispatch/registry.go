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
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/askq/core"
	"golang.org/x/sync/semaphore"
)

// bufferState is the lifecycle state of an answer buffer.
type bufferState int32

const (
	stateStreaming bufferState = iota
	stateFinished
)

func (s bufferState) String() string {
	switch s {
	case stateStreaming:
		return "streaming"
	case stateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// buffer is the bounded fragment FIFO for one question.
type buffer struct {
	fragments chan core.Fragment
	state     atomic.Int32
}

func newBuffer(capacity int) *buffer {
	return &buffer{fragments: make(chan core.Fragment, capacity)}
}

func (b *buffer) State() bufferState {
	return bufferState(b.state.Load())
}

// RegistryStats is a point-in-time view of the registry.
type RegistryStats struct {
	Buffers   int `json:"buffers"`
	Streaming int `json:"streaming"`
	Finished  int `json:"finished"`
	Pending   int `json:"pending_fragments"`
}

// Registry maps question ids to their answer buffers.
//
// The registry lock guards the map only. Fragments are pushed and popped
// outside the lock, so a full buffer blocks its publisher without stalling
// other questions.
type Registry struct {
	lock        *semaphore.Weighted
	lockTimeout time.Duration
	capacity    int
	buffers     map[core.QuestionID]*buffer
	logger      *slog.Logger
}

// NewRegistry creates a registry whose buffers hold capacity fragments and
// whose lock acquisitions give up after lockTimeout.
func NewRegistry(capacity int, lockTimeout time.Duration, logger *slog.Logger) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		lock:        semaphore.NewWeighted(1),
		lockTimeout: lockTimeout,
		capacity:    capacity,
		buffers:     make(map[core.QuestionID]*buffer),
		logger:      logger,
	}
}

// Publish appends frag to the buffer for id, creating the buffer if needed.
// It blocks while the buffer is full, until ctx is done.
func (r *Registry) Publish(ctx context.Context, id core.QuestionID, frag core.Fragment) error {
	buf, err := r.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	if frag.Finished {
		buf.state.Store(int32(stateFinished))
	}

	select {
	case buf.fragments <- frag:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain collects everything currently buffered for id into one Answer.
//
// Draining stops at the terminal fragment or when the buffer is empty; it
// never waits for the engine. On the terminal fragment the buffer is
// removed, so a later Drain for the same id reports the empty, unfinished
// answer returned for unknown ids.
func (r *Registry) Drain(ctx context.Context, id core.QuestionID) (core.Answer, error) {
	buf, ok, err := r.lookup(ctx, id)
	if err != nil {
		return core.Answer{}, err
	}
	if !ok {
		r.logger.Warn("poll for unknown question", "question", id)
		return core.Answer{}, nil
	}

	var (
		answer core.Answer
		text   strings.Builder
	)
	for {
		select {
		case frag := <-buf.fragments:
			if !frag.Finished {
				text.WriteString(frag.Text)
				answer.ConversationID = frag.ConversationID
				answer.ParentID = frag.ParentID
				continue
			}

			answer.Text = text.String()
			if frag.ConversationID != "" {
				answer.ConversationID = frag.ConversationID
			}
			if frag.ParentID != "" {
				answer.ParentID = frag.ParentID
			}
			if err := r.remove(ctx, id); err != nil {
				// Put the terminal back so the next poll finishes the answer.
				select {
				case buf.fragments <- frag:
					r.logger.Warn("deferring buffer removal", "question", id, "err", err)
				default:
					r.logger.Error("dropped terminal fragment", "question", id, "err", err)
				}
				return answer, nil
			}
			answer.Finished = true
			answer.Error = frag.Err
			return answer, nil
		default:
			answer.Text = text.String()
			return answer, nil
		}
	}
}

// Stats reports buffer counts and pending fragments.
func (r *Registry) Stats(ctx context.Context) (RegistryStats, error) {
	if err := r.acquire(ctx); err != nil {
		return RegistryStats{}, err
	}
	defer r.lock.Release(1)

	stats := RegistryStats{Buffers: len(r.buffers)}
	for _, buf := range r.buffers {
		switch buf.State() {
		case stateFinished:
			stats.Finished++
		default:
			stats.Streaming++
		}
		stats.Pending += len(buf.fragments)
	}
	return stats, nil
}

func (r *Registry) acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()
	if err := r.lock.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return err
	}
	return nil
}

func (r *Registry) getOrCreate(ctx context.Context, id core.QuestionID) (*buffer, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.lock.Release(1)

	buf, ok := r.buffers[id]
	if !ok {
		buf = newBuffer(r.capacity)
		r.buffers[id] = buf
	}
	return buf, nil
}

func (r *Registry) lookup(ctx context.Context, id core.QuestionID) (*buffer, bool, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, false, err
	}
	defer r.lock.Release(1)

	buf, ok := r.buffers[id]
	return buf, ok, nil
}

func (r *Registry) remove(ctx context.Context, id core.QuestionID) error {
	if err := r.acquire(ctx); err != nil {
		return err
	}
	defer r.lock.Release(1)

	delete(r.buffers, id)
	return nil
}
