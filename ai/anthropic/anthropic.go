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

// Package anthropic provides an answering engine backed by the Anthropic
// Messages API. Text deltas from the streaming API are accumulated into
// cumulative steps; conversation context lives in an ai/conversation.Store.
package anthropic

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
)

// Provider creates engines for the Anthropic Messages API.
type Provider struct {
	config        *ai.Config
	conversations *conversation.Store
	logger        *slog.Logger
}

// NewProvider creates a provider. A non-empty config.Host overrides the
// API base URL.
func NewProvider(config *ai.Config, conversations *conversation.Store) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = conversation.NewStore(config.MaxConversations)
	}
	return &Provider{
		config:        config,
		conversations: conversations,
		logger:        slog.Default().With("component", "anthropic-provider"),
	}, nil
}

func (p *Provider) Name() string {
	return ai.ProviderAnthropic
}

// NewEngine creates an engine using credential as the API key.
func (p *Provider) NewEngine(credential string) (ai.Engine, error) {
	if credential == "" {
		return nil, ai.ErrCredentialRequired
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(credential)}
	if p.config.Host != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.config.Host))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Engine{
		client:        &client,
		conversations: p.conversations,
		model:         anthropic.Model(p.config.Model),
		systemPrompt:  p.config.SystemPrompt,
		maxTokens:     int64(p.config.MaxTokens),
		logger:        p.logger,
	}, nil
}

func (p *Provider) Close() error {
	return nil
}

// Engine answers one question through the Messages streaming API.
type Engine struct {
	client        *anthropic.Client
	conversations *conversation.Store
	model         anthropic.Model
	systemPrompt  string
	maxTokens     int64
	logger        *slog.Logger
}

var _ ai.Engine = (*Engine)(nil)

// Ask streams the answer to req.
func (e *Engine) Ask(ctx context.Context, req ai.Request) iter.Seq2[ai.Step, error] {
	return func(yield func(ai.Step, error) bool) {
		ex, err := e.conversations.Begin(req.ConversationID, req.ParentID, req.Question)
		if err != nil {
			yield(ai.Step{}, err)
			return
		}

		ctx, touch, stop := ai.WithIdleTimeout(ctx, req.Timeout)
		defer stop()

		params := anthropic.MessageNewParams{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			Messages:  buildMessages(ex.History, req.Question),
		}
		if e.systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: e.systemPrompt}}
		}

		stream := e.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var answer strings.Builder
		defer func() { ex.Settle(answer.String()) }()
		for stream.Next() {
			touch()
			event := stream.Current()
			blockDelta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := blockDelta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			answer.WriteString(text.Text)
			step := ai.Step{
				Message:        answer.String(),
				ConversationID: ex.ConversationID,
				ParentID:       ex.ReplyID,
			}
			if !yield(step, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			e.logger.Debug("message stream failed", "conversation", ex.ConversationID, "err", err)
			yield(ai.Step{}, ai.StreamError(ctx, err))
			return
		}

		ex.Commit(answer.String())
	}
}

// buildMessages converts conversation history plus the new question into
// alternating user/assistant messages.
func buildMessages(history []conversation.Message, question string) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, msg := range history {
		block := anthropic.NewTextBlock(msg.Text)
		if msg.Role == conversation.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(question)))
}
