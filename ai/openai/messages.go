package openai

import (
	"github.com/poiesic/askq/ai/conversation"
	"github.com/tmc/langchaingo/llms"
)

// buildMessages converts conversation history plus the new question into
// langchaingo message content, oldest first.
func buildMessages(systemPrompt string, history []conversation.Message, question string) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history)+2)
	if systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == conversation.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Text))
	}
	return append(content, llms.TextParts(llms.ChatMessageTypeHuman, question))
}
