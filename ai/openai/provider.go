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

package openai

import (
	"log/slog"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider creates langchaingo-backed engines for OpenAI-compatible services.
type Provider struct {
	config        *ai.Config
	conversations *conversation.Store
	logger        *slog.Logger
}

// NewProvider creates a provider for the configured host and model.
// Conversations are shared by every engine the provider creates.
func NewProvider(config *ai.Config, conversations *conversation.Store) (ai.Provider, error) {
	return newProvider(config, conversations)
}

func newProvider(config *ai.Config, conversations *conversation.Store) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = conversation.NewStore(config.MaxConversations)
	}

	return &Provider{
		config:        config,
		conversations: conversations,
		logger:        slog.Default().With("component", "openai-provider"),
	}, nil
}

func (p *Provider) Name() string {
	return ai.ProviderOpenAI
}

// NewEngine creates an engine authenticated with credential.
func (p *Provider) NewEngine(credential string) (ai.Engine, error) {
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	token := credential
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(p.config.Host),
		openai.WithToken(token),
		openai.WithModel(p.config.Model),
	)
	if err != nil {
		return nil, err
	}

	return &Engine{
		client:        client,
		conversations: p.conversations,
		systemPrompt:  p.config.SystemPrompt,
		maxTokens:     p.config.MaxTokens,
		logger:        p.logger,
	}, nil
}

func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
