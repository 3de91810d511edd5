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

// Package askq wires an answering engine, a credential and a dispatcher
// into a single service that accepts questions and serves streamed answers
// by polling.
package askq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/anthropic"
	"github.com/poiesic/askq/ai/chatgpt"
	"github.com/poiesic/askq/ai/conversation"
	"github.com/poiesic/askq/ai/gemini"
	"github.com/poiesic/askq/ai/openai"
	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/credential"
	"github.com/poiesic/askq/dispatch"
)

// Service is a running question dispatcher bound to one engine provider.
type Service struct {
	provider      ai.Provider
	conversations *conversation.Store
	credentials   *credential.Holder
	dispatcher    *dispatch.Dispatcher
	logger        *slog.Logger
}

type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	credential   string
	dispatchOpts []dispatch.Option
	logger       *slog.Logger
}

// WithAIConfig sets the engine configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building one from the AI config.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithCredential sets the initial engine credential.
func WithCredential(credential string) ServiceOption {
	return func(o *serviceOptions) {
		o.credential = credential
	}
}

// WithDispatchOptions passes options through to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.dispatchOpts = append(o.dispatchOpts, opts...)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewProvider builds the provider named by cfg.Provider. Engines from the
// provider share conversations.
func NewProvider(cfg *ai.Config, conversations *conversation.Store) (ai.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg, conversations)
	case ai.ProviderChatGPT:
		return chatgpt.NewProvider(cfg, conversations)
	case ai.ProviderAnthropic:
		return anthropic.NewProvider(cfg, conversations)
	case ai.ProviderGemini:
		return gemini.NewProvider(cfg, conversations)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// NewService creates a stopped service. Call Start to begin answering.
func NewService(opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	conversations := conversation.NewStore(options.aiConfig.MaxConversations)
	provider := options.provider
	if provider == nil {
		var err error
		provider, err = NewProvider(options.aiConfig, conversations)
		if err != nil {
			return nil, err
		}
	}

	credentials := credential.NewHolder(options.credential)
	dispatchOpts := append([]dispatch.Option{
		dispatch.WithAskTimeout(options.aiConfig.AskTimeout),
		dispatch.WithLogger(options.logger),
	}, options.dispatchOpts...)

	dispatcher, err := dispatch.New(provider, credentials, dispatchOpts...)
	if err != nil {
		if closeErr := provider.Close(); closeErr != nil {
			options.logger.Error("error closing AI provider", "err", closeErr)
		}
		return nil, err
	}

	return &Service{
		provider:      provider,
		conversations: conversations,
		credentials:   credentials,
		dispatcher:    dispatcher,
		logger:        options.logger,
	}, nil
}

// Start launches the worker pool.
func (s *Service) Start() error {
	if err := s.dispatcher.Start(); err != nil {
		return err
	}
	s.logger.Info("service started", "provider", s.provider.Name())
	return nil
}

// Stop stops the dispatcher and releases the provider.
func (s *Service) Stop() error {
	s.dispatcher.Stop()
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}

func (s *Service) Submit(text, conversationID, parentID string) (core.QuestionID, error) {
	return s.dispatcher.Submit(text, conversationID, parentID)
}

func (s *Service) Poll(ctx context.Context, id core.QuestionID) (core.Answer, error) {
	return s.dispatcher.Poll(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (dispatch.Stats, error) {
	return s.dispatcher.Stats(ctx)
}

// Credentials returns the holder workers read the credential from, for
// rotation.
func (s *Service) Credentials() *credential.Holder {
	return s.credentials
}

// Conversations returns the in-memory conversation store.
func (s *Service) Conversations() *conversation.Store {
	return s.conversations
}
