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

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithIdleTimeout derives a context that is cancelled when touch has not
// been called for longer than timeout. stop must be called to release the
// timer. A non-positive timeout disables the watchdog.
func WithIdleTimeout(parent context.Context, timeout time.Duration) (ctx context.Context, touch func(), stop func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if timeout <= 0 {
		return ctx, func() {}, func() { cancel(nil) }
	}

	timer := time.AfterFunc(timeout, func() {
		cancel(ErrIdleTimeout)
	})
	touch = func() {
		timer.Reset(timeout)
	}
	stop = func() {
		timer.Stop()
		cancel(nil)
	}
	return ctx, touch, stop
}

// StreamError attributes a streaming failure to the idle watchdog when it
// fired, so callers see ErrIdleTimeout instead of a bare context error.
func StreamError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrIdleTimeout) && !errors.Is(err, ErrIdleTimeout) {
		return fmt.Errorf("%w: %w", ErrIdleTimeout, err)
	}
	return err
}
