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
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
	"github.com/tmc/langchaingo/llms"
)

// errStopped aborts a streaming request after the consumer stopped iterating.
var errStopped = errors.New("consumer stopped")

// Engine answers one question through a langchaingo chat model.
type Engine struct {
	client        llms.Model
	conversations *conversation.Store
	systemPrompt  string
	maxTokens     int
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

		var answer strings.Builder
		defer func() { ex.Settle(answer.String()) }()
		stopped := false
		step := func() ai.Step {
			return ai.Step{
				Message:        answer.String(),
				ConversationID: ex.ConversationID,
				ParentID:       ex.ReplyID,
			}
		}

		streamFn := func(_ context.Context, chunk []byte) error {
			touch()
			if len(chunk) == 0 {
				return nil
			}
			answer.Write(chunk)
			if !yield(step(), nil) {
				stopped = true
				return errStopped
			}
			return nil
		}

		content := buildMessages(e.systemPrompt, ex.History, req.Question)
		resp, err := e.client.GenerateContent(ctx, content,
			llms.WithStreamingFunc(streamFn),
			llms.WithMaxTokens(e.maxTokens),
		)
		if stopped {
			return
		}
		if err != nil {
			e.logger.Debug("generate content failed", "conversation", ex.ConversationID, "err", err)
			yield(ai.Step{}, ai.StreamError(ctx, err))
			return
		}
		if resp == nil || len(resp.Choices) < 1 {
			yield(ai.Step{}, ai.ErrEmptyResponse)
			return
		}

		// Some servers ignore the streaming flag and answer in one piece
		if answer.Len() == 0 && resp.Choices[0].Content != "" {
			answer.WriteString(resp.Choices[0].Content)
			if !yield(step(), nil) {
				return
			}
		}

		ex.Commit(answer.String())
	}
}
