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

// Package conversation keeps the message trees that give conversation and
// parent IDs their meaning. A conversation is a tree of messages; a turn
// names the message it answers (its parent), and the context sent to an
// engine is the chain from that parent back to the root.
//
// Conversations live in process memory only and are forgotten, least
// recently used first, once the configured maximum is exceeded.
package conversation

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrConversationNotFound is returned for an unknown conversation ID.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrParentNotFound is returned when a parent ID does not belong to the conversation.
	ErrParentNotFound = errors.New("parent message not found")
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one node of a conversation tree.
type Message struct {
	ID       string
	ParentID string
	Role     Role
	Text     string
}

type thread struct {
	id       string
	messages map[string]Message
	latest   string
}

// Store holds conversations in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	max     int
	threads map[string]*list.Element
	lru     *list.List // front is most recently used; values are *thread
}

// NewStore creates a store remembering at most maxConversations conversations.
func NewStore(maxConversations int) *Store {
	if maxConversations < 1 {
		maxConversations = 1
	}
	return &Store{
		max:     maxConversations,
		threads: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Len returns the number of remembered conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Exchange is one prepared question/answer turn. IDs for both messages are
// assigned up front so that streamed steps can already name the reply as
// the next parent.
type Exchange struct {
	ConversationID string
	PromptID       string
	ReplyID        string
	History        []Message // Root first, ending at the parent; excludes the prompt

	parentID  string
	question  string
	store     *Store
	committed bool
}

// Begin prepares a turn. An empty conversationID starts a new conversation.
// An empty parentID continues from the latest message of the conversation.
func (s *Store) Begin(conversationID, parentID, question string) (*Exchange, error) {
	ex := &Exchange{
		ConversationID: conversationID,
		PromptID:       uuid.NewString(),
		ReplyID:        uuid.NewString(),
		question:       question,
		store:          s,
	}

	if conversationID == "" {
		ex.ConversationID = uuid.NewString()
		return ex, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.threads[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	s.lru.MoveToFront(elem)
	t := elem.Value.(*thread)

	if parentID == "" {
		parentID = t.latest
	}
	history, err := t.path(parentID)
	if err != nil {
		return nil, err
	}
	ex.parentID = parentID
	ex.History = history
	return ex, nil
}

// Commit records the question and its answer. Only the first call for an
// exchange has any effect.
func (e *Exchange) Commit(answer string) {
	if e.committed {
		return
	}
	e.committed = true

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var t *thread
	if elem, ok := s.threads[e.ConversationID]; ok {
		s.lru.MoveToFront(elem)
		t = elem.Value.(*thread)
	} else {
		t = &thread{id: e.ConversationID, messages: make(map[string]Message)}
		s.threads[e.ConversationID] = s.lru.PushFront(t)
	}

	t.messages[e.PromptID] = Message{ID: e.PromptID, ParentID: e.parentID, Role: RoleUser, Text: e.question}
	t.messages[e.ReplyID] = Message{ID: e.ReplyID, ParentID: e.PromptID, Role: RoleAssistant, Text: answer}
	t.latest = e.ReplyID

	for s.lru.Len() > s.max {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.threads, oldest.Value.(*thread).id)
	}
}

// Settle commits a partial answer once any of it has been handed out.
// Streamed steps already name ConversationID and ReplyID, so a turn that
// fails midway must still be recorded for those ids to be continued.
// A turn that produced no text is left out.
func (e *Exchange) Settle(partial string) {
	if partial == "" {
		return
	}
	e.Commit(partial)
}

// path returns the messages from the root down to id. Must be called with lock held.
func (t *thread) path(id string) ([]Message, error) {
	var reversed []Message
	for cur := id; cur != ""; {
		msg, ok := t.messages[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, cur)
		}
		reversed = append(reversed, msg)
		cur = msg.ParentID
	}

	history := make([]Message, len(reversed))
	for i, msg := range reversed {
		history[len(reversed)-1-i] = msg
	}
	return history, nil
}
