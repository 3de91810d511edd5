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

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Resolve fetches a credential from src, retrying with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: delay before the second attempt (doubles on each retry)
// ErrNotFound and ErrNameRequired are permanent and are not retried.
// Returns the error from the last attempt if all attempts fail.
func Resolve(ctx context.Context, src Source, maxAttempts int, baseDelay time.Duration) (string, error) {
	if maxAttempts <= 0 {
		return "", ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		credential, err := src.Credential(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Debug("credential resolved after retry", "attempt", attempt)
			}
			return credential, nil
		}
		lastErr = err
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNameRequired) {
			return "", err
		}

		slog.Debug("credential lookup failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", err)

		if attempt == maxAttempts {
			break
		}

		// baseDelay * 2^(attempt-1)
		delay := baseDelay << (attempt - 1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return "", lastErr
}
