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

package core

import (
	"github.com/google/uuid"
)

// QuestionID is an opaque unique token identifying a submitted question.
type QuestionID string

// NewQuestionID generates a fresh random question identifier.
func NewQuestionID() QuestionID {
	return QuestionID(uuid.NewString())
}

// String returns the identifier as a plain string.
func (id QuestionID) String() string {
	return string(id)
}

// Question is one caller-submitted prompt awaiting an answer.
// Questions are immutable once created.
// An empty ConversationID or ParentID means "absent".
type Question struct {
	ID             QuestionID
	Text           string
	ConversationID string
	ParentID       string
}

// NewQuestion creates a question with a freshly generated ID.
func NewQuestion(text, conversationID, parentID string) Question {
	return Question{
		ID:             NewQuestionID(),
		Text:           text,
		ConversationID: conversationID,
		ParentID:       parentID,
	}
}

// Fragment is one increment of a streamed answer, or the terminal
// sentinel (Finished=true, empty Text) that closes the stream.
type Fragment struct {
	Text           string
	ConversationID string // Conversation the answer belongs to
	ParentID       string // Message ID to use as parent for the next turn
	Finished       bool
	Err            string // Failure detail, only ever set on terminal fragments
}

// Delta builds a non-terminal fragment.
func Delta(text, conversationID, parentID string) Fragment {
	return Fragment{
		Text:           text,
		ConversationID: conversationID,
		ParentID:       parentID,
	}
}

// Done builds the terminal fragment for a stream that completed normally.
func Done(conversationID, parentID string) Fragment {
	return Fragment{
		ConversationID: conversationID,
		ParentID:       parentID,
		Finished:       true,
	}
}

// Failed builds the terminal fragment for a stream that ended with an error.
// Conversation and parent IDs are deliberately left absent.
func Failed(err error) Fragment {
	f := Fragment{Finished: true}
	if err != nil {
		f.Err = err.Error()
	}
	return f
}

// Answer is the caller-visible view returned by a poll: everything that
// became available since the previous poll, concatenated in arrival order.
type Answer struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
	ParentID       string `json:"parent_id,omitempty"`
	Finished       bool   `json:"finished"`
	Error          string `json:"error,omitempty"` // Set when the stream failed
}

// Failed reports whether the answer terminated with an engine failure.
func (a Answer) Failed() bool {
	return a.Finished && a.Error != ""
}
