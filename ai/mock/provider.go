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

package mock

import (
	"sync"

	"github.com/poiesic/askq/ai"
)

// MockProvider is a test double for ai.Provider.
// It hands out one shared engine.
type MockProvider struct {
	// NewEngineFunc is called by NewEngine if set.
	NewEngineFunc func(credential string) (ai.Engine, error)

	engine      ai.Engine
	mu          sync.Mutex
	credentials []string
	closed      bool
}

// NewMockProvider creates a provider that returns engine for every credential.
//
// Returns the concrete type so tests can inspect credentials and close state.
func NewMockProvider(engine ai.Engine) *MockProvider {
	return &MockProvider{engine: engine}
}

func (p *MockProvider) Name() string {
	return "mock"
}

// NewEngine records the credential and returns the shared engine.
func (p *MockProvider) NewEngine(credential string) (ai.Engine, error) {
	p.mu.Lock()
	p.credentials = append(p.credentials, credential)
	p.mu.Unlock()

	if p.NewEngineFunc != nil {
		return p.NewEngineFunc(credential)
	}
	return p.engine, nil
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Credentials returns every credential NewEngine was called with.
func (p *MockProvider) Credentials() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.credentials...)
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
