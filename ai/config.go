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
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Provider names understood by Config.
const (
	ProviderOpenAI    = "openai"    // OpenAI-compatible endpoint via langchaingo (Ollama, vLLM, ...)
	ProviderChatGPT   = "chatgpt"   // OpenAI Chat Completions via the official SDK
	ProviderAnthropic = "anthropic" // Anthropic Messages API
	ProviderGemini    = "gemini"    // Google Gemini API
)

// Providers lists every supported provider name.
var Providers = []string{ProviderOpenAI, ProviderChatGPT, ProviderAnthropic, ProviderGemini}

// DefaultModels is the model each provider uses when none is configured.
var DefaultModels = map[string]string{
	ProviderOpenAI:    "qwen2.5:3b",
	ProviderChatGPT:   "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGemini:    "gemini-2.5-flash",
}

// Config holds configuration for answering engines.
type Config struct {
	// Provider selects the engine implementation, one of Providers.
	Provider string

	// Host is the base URL of the engine API.
	// Required by the openai provider; for the others it overrides the
	// vendor's default endpoint when non-empty.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	Host string

	// Model is the model identifier used to answer questions.
	// Example: "qwen2.5:3b", "gpt-4o-mini", "claude-3-5-haiku-latest"
	Model string

	// SystemPrompt is prepended to every conversation when non-empty.
	SystemPrompt string

	// AskTimeout bounds the silence between two streamed steps.
	// Default: 10s
	AskTimeout time.Duration

	// MaxTokens caps the length of a single answer.
	// Default: 2048
	MaxTokens int

	// MaxConversations bounds how many conversations are remembered
	// in memory. Least recently used conversations are forgotten first.
	// Default: 1024
	MaxConversations int
}

type ConfigOption func(*Config)

func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func WithSystemPrompt(prompt string) ConfigOption {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

func WithAskTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.AskTimeout = timeout
	}
}

func WithMaxTokens(max int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = max
	}
}

func WithMaxConversations(max int) ConfigOption {
	return func(c *Config) {
		c.MaxConversations = max
	}
}

func DefaultConfig() *Config {
	return &Config{
		Provider:         ProviderOpenAI,
		Host:             "http://localhost:11434/v1",
		Model:            "qwen2.5:3b",
		AskTimeout:       10 * time.Second,
		MaxTokens:        2048,
		MaxConversations: 1024,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	// Ensure Host ends with /v1 for OpenAI-compatible APIs
	if c.Provider == ProviderOpenAI && c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.Host = strings.TrimSuffix(c.Host, "/")
		c.Host = c.Host + "/v1"
	}
}

func (c *Config) Validate() error {
	// Normalize first to ensure hosts are in correct format
	c.Normalize()

	if !slices.Contains(Providers, c.Provider) {
		return fmt.Errorf("ai config: unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))
	}
	if c.Provider == ProviderOpenAI && c.Host == "" {
		return errors.New("ai config: Host is required for the openai provider")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.AskTimeout <= 0 {
		return errors.New("ai config: AskTimeout must be positive")
	}
	if c.MaxTokens < 1 {
		return errors.New("ai config: MaxTokens must be at least 1")
	}
	if c.MaxConversations < 1 {
		return errors.New("ai config: MaxConversations must be at least 1")
	}
	return nil
}
