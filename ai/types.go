package ai

import "time"

// Request is one question handed to an Engine.
// Empty ConversationID starts a new conversation; empty ParentID continues
// from the latest message of an existing conversation.
type Request struct {
	Question       string
	ConversationID string
	ParentID       string
	Timeout        time.Duration // Idle timeout between steps, zero means none
}

// Step is one observation of a streamed answer.
type Step struct {
	// Message is the cumulative answer text so far.
	Message string

	// ConversationID identifies the conversation the answer belongs to.
	ConversationID string

	// ParentID is the message ID the next turn should name as its parent.
	ParentID string
}
