package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/dispatch"
)

const (
	QuestionsPath = "/chatgpt/api/questions"
	AnswersPath   = "/chatgpt/api/answers"
	HealthPath    = "/healthz"
)

// Service is what the server needs from the dispatcher.
type Service interface {
	Submit(text, conversationID, parentID string) (core.QuestionID, error)
	Poll(ctx context.Context, id core.QuestionID) (core.Answer, error)
	Stats(ctx context.Context) (dispatch.Stats, error)
}

// QuestionRequest is the body of a question submission.
type QuestionRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	ParentID       string `json:"parent_id,omitempty"`
}

// QuestionResponse carries the id assigned to a submitted question.
type QuestionResponse struct {
	QuestionID core.QuestionID `json:"question_id"`
}

// envelope is the wire wrapper around every response.
type envelope[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

// ErrAPI is wrapped by every non-2xx response seen by Client.
var ErrAPI = errors.New("api error")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrAPI, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}
