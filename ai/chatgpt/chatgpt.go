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

// Package chatgpt provides an answering engine backed by the OpenAI Chat
// Completions API through the official openai-go SDK. It streams completion
// chunks and keeps conversation context in an ai/conversation.Store.
package chatgpt

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
)

// Provider creates engines for the OpenAI Chat Completions API.
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
		logger:        slog.Default().With("component", "chatgpt-provider"),
	}, nil
}

func (p *Provider) Name() string {
	return ai.ProviderChatGPT
}

// NewEngine creates an engine using credential as the API key.
func (p *Provider) NewEngine(credential string) (ai.Engine, error) {
	if credential == "" {
		return nil, ai.ErrCredentialRequired
	}

	opts := []option.RequestOption{option.WithAPIKey(credential)}
	if p.config.Host != "" {
		opts = append(opts, option.WithBaseURL(p.config.Host))
	}
	client := openai.NewClient(opts...)

	return &Engine{
		client:        &client,
		conversations: p.conversations,
		model:         p.config.Model,
		systemPrompt:  p.config.SystemPrompt,
		maxTokens:     int64(p.config.MaxTokens),
		logger:        p.logger,
	}, nil
}

func (p *Provider) Close() error {
	return nil
}

// Engine answers one question through the Chat Completions streaming API.
type Engine struct {
	client        *openai.Client
	conversations *conversation.Store
	model         string
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

		params := openai.ChatCompletionNewParams{
			Messages:            buildMessages(e.systemPrompt, ex.History, req.Question),
			Model:               e.model,
			MaxCompletionTokens: openai.Int(e.maxTokens),
		}

		stream := e.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var answer strings.Builder
		defer func() { ex.Settle(answer.String()) }()
		for stream.Next() {
			touch()
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			answer.WriteString(chunk.Choices[0].Delta.Content)
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
			e.logger.Debug("chat completion stream failed", "conversation", ex.ConversationID, "err", err)
			yield(ai.Step{}, ai.StreamError(ctx, err))
			return
		}

		ex.Commit(answer.String())
	}
}

// buildMessages converts conversation history plus the new question into
// chat completion messages, oldest first.
func buildMessages(systemPrompt string, history []conversation.Message, question string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		if msg.Role == conversation.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(msg.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(msg.Text))
	}
	return append(messages, openai.UserMessage(question))
}
