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
	"iter"
)

// Engine is a streaming answering engine bound to one credential.
// A fresh Engine is created for every question so that no state leaks
// between questions.
type Engine interface {
	// Ask sends a question and returns a lazy, ordered, finite sequence of
	// steps. Each step carries the cumulative answer text produced so far,
	// not a delta. The sequence ends normally when the answer is complete,
	// or yields a non-nil error exactly once and then stops.
	// Breaking out of the sequence early aborts the underlying request.
	Ask(ctx context.Context, req Request) iter.Seq2[Step, error]
}

// Provider creates engines for one configured backend.
type Provider interface {
	// Name returns the provider name, one of Providers.
	Name() string

	// NewEngine returns an engine authenticated with the given credential.
	// The returned Engine is used by a single goroutine for a single question.
	NewEngine(credential string) (Engine, error)

	// Close releases resources held by the provider.
	// After Close is called, the provider should not be used.
	Close() error
}
