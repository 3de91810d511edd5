// Package gemini provides an answering engine backed by Google Gemini
// through the genai SDK.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
	"google.golang.org/genai"
)

// Provider creates Gemini engines.
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
		logger:        slog.Default().With("component", "gemini-provider"),
	}, nil
}

func (p *Provider) Name() string {
	return ai.ProviderGemini
}

// NewEngine creates an engine using credential as the API key.
func (p *Provider) NewEngine(credential string) (ai.Engine, error) {
	if credential == "" {
		return nil, ai.ErrCredentialRequired
	}

	cc := &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	}
	if p.config.Host != "" {
		cc.HTTPOptions.BaseURL = p.config.Host
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Engine{
		client:        client,
		conversations: p.conversations,
		model:         p.config.Model,
		systemPrompt:  p.config.SystemPrompt,
		maxTokens:     int32(p.config.MaxTokens),
		logger:        p.logger,
	}, nil
}

func (p *Provider) Close() error {
	return nil
}

// Engine answers one question through GenerateContentStream.
type Engine struct {
	client        *genai.Client
	conversations *conversation.Store
	model         string
	systemPrompt  string
	maxTokens     int32
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

		config := &genai.GenerateContentConfig{MaxOutputTokens: e.maxTokens}
		if e.systemPrompt != "" {
			config.SystemInstruction = genai.NewContentFromText(e.systemPrompt, genai.RoleUser)
		}

		var answer strings.Builder
		defer func() { ex.Settle(answer.String()) }()
		contents := buildContents(ex.History, req.Question)
		for resp, err := range e.client.Models.GenerateContentStream(ctx, e.model, contents, config) {
			touch()
			if err != nil {
				e.logger.Debug("gemini stream failed", "conversation", ex.ConversationID, "err", err)
				yield(ai.Step{}, ai.StreamError(ctx, err))
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			answer.WriteString(text)
			step := ai.Step{
				Message:        answer.String(),
				ConversationID: ex.ConversationID,
				ParentID:       ex.ReplyID,
			}
			if !yield(step, nil) {
				return
			}
		}

		ex.Commit(answer.String())
	}
}

// buildContents converts conversation history plus the new question into
// Gemini contents, oldest first.
func buildContents(history []conversation.Message, question string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	return append(contents, genai.NewContentFromText(question, genai.RoleUser))
}

// responseText extracts the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}
