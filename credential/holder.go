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
	"sync/atomic"
	"time"
)

// Holder is a synchronised accessor for the current credential snapshot.
// The zero value holds the empty credential.
type Holder struct {
	current atomic.Pointer[string]
}

// NewHolder creates a holder initialised with credential.
func NewHolder(credential string) *Holder {
	h := &Holder{}
	h.Set(credential)
	return h
}

// Current returns the credential snapshot.
func (h *Holder) Current() string {
	if p := h.current.Load(); p != nil {
		return *p
	}
	return ""
}

// Set replaces the snapshot. Questions already in flight keep the engine
// they were started with.
func (h *Holder) Set(credential string) {
	h.current.Store(&credential)
}

// Refresh resolves src with retries and stores the result. On failure the
// previous snapshot is kept.
func (h *Holder) Refresh(ctx context.Context, src Source, maxAttempts int, baseDelay time.Duration) error {
	credential, err := Resolve(ctx, src, maxAttempts, baseDelay)
	if err != nil {
		return err
	}
	h.Set(credential)
	return nil
}
