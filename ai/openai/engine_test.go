package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/askq/ai"
	"github.com/poiesic/askq/ai/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompletions serves a canned streaming chat completion and records request bodies.
type fakeCompletions struct {
	mu     sync.Mutex
	chunks []string
	status int
	bodies []string
	auth   []string
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(body))
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range f.chunks {
		writeChunk(w, map[string]any{"role": "assistant", "content": chunk}, nil)
	}
	stop := "stop"
	writeChunk(w, map[string]any{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func writeChunk(w http.ResponseWriter, delta map[string]any, finish *string) {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	}
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func setupTestProvider(t *testing.T, fake *fakeCompletions) *Provider {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := ai.NewConfig(ai.WithHost(srv.URL), ai.WithModel("test-model"))
	p, err := newProvider(cfg, conversation.NewStore(10))
	require.NoError(t, err)
	return p
}

func collect(t *testing.T, engine ai.Engine, req ai.Request) ([]ai.Step, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var steps []ai.Step
	for step, err := range engine.Ask(ctx, req) {
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func TestEngine_StreamsCumulativeSteps(t *testing.T) {
	fake := &fakeCompletions{chunks: []string{"H", "e", "llo"}}
	p := setupTestProvider(t, fake)

	engine, err := p.NewEngine("sk-test")
	require.NoError(t, err)

	steps, err := collect(t, engine, ai.Request{Question: "hello", Timeout: time.Second})
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, "H", steps[0].Message)
	assert.Equal(t, "He", steps[1].Message)
	assert.Equal(t, "Hello", steps[2].Message)

	// Every step names the same conversation and reply
	for _, s := range steps {
		assert.Equal(t, steps[0].ConversationID, s.ConversationID)
		assert.Equal(t, steps[0].ParentID, s.ParentID)
	}
	assert.NotEmpty(t, steps[0].ConversationID)
	assert.NotEmpty(t, steps[0].ParentID)

	require.Len(t, fake.auth, 1)
	assert.Equal(t, "Bearer sk-test", fake.auth[0])
}

func TestEngine_ContinuesConversation(t *testing.T) {
	fake := &fakeCompletions{chunks: []string{"Paris"}}
	p := setupTestProvider(t, fake)

	engine, err := p.NewEngine("")
	require.NoError(t, err)
	first, err := collect(t, engine, ai.Request{Question: "Capital of France?"})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	engine, err = p.NewEngine("")
	require.NoError(t, err)
	last := first[len(first)-1]
	second, err := collect(t, engine, ai.Request{
		Question:       "And its population?",
		ConversationID: last.ConversationID,
		ParentID:       last.ParentID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, second)
	assert.Equal(t, last.ConversationID, second[0].ConversationID)
	assert.NotEqual(t, last.ParentID, second[0].ParentID)

	// The second request carries the first turn as context
	require.Len(t, fake.bodies, 2)
	assert.Contains(t, fake.bodies[1], "Capital of France?")
	assert.Contains(t, fake.bodies[1], "And its population?")

	// No token given, placeholder used
	assert.Equal(t, "Bearer none", fake.auth[0])
}

func TestEngine_UnknownConversation(t *testing.T) {
	fake := &fakeCompletions{chunks: []string{"x"}}
	p := setupTestProvider(t, fake)

	engine, err := p.NewEngine("")
	require.NoError(t, err)

	_, err = collect(t, engine, ai.Request{Question: "hi", ConversationID: "forgotten"})
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
	assert.Empty(t, fake.bodies, "no request should reach the server")
}

func TestEngine_ServerError(t *testing.T) {
	fake := &fakeCompletions{status: http.StatusBadRequest}
	p := setupTestProvider(t, fake)

	engine, err := p.NewEngine("")
	require.NoError(t, err)

	steps, err := collect(t, engine, ai.Request{Question: "hi"})
	assert.Error(t, err)
	assert.Empty(t, steps)
	assert.Equal(t, 0, p.conversations.Len(), "failed turns are not remembered")
}

func TestEngine_ConsumerStopsEarly(t *testing.T) {
	fake := &fakeCompletions{chunks: []string{"a", "b", "c", "d"}}
	p := setupTestProvider(t, fake)

	engine, err := p.NewEngine("")
	require.NoError(t, err)

	count := 0
	for _, err := range engine.Ask(context.Background(), ai.Request{Question: "hi"}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, p.conversations.Len(), "abandoned turns are not remembered")
}

func TestBuildMessages(t *testing.T) {
	history := []conversation.Message{
		{ID: "1", Role: conversation.RoleUser, Text: "q1"},
		{ID: "2", ParentID: "1", Role: conversation.RoleAssistant, Text: "a1"},
	}

	content := buildMessages("be brief", history, "q2")
	require.Len(t, content, 4)
	assert.Equal(t, "system", string(content[0].Role))
	assert.Equal(t, "human", string(content[1].Role))
	assert.Equal(t, "ai", string(content[2].Role))
	assert.Equal(t, "human", string(content[3].Role))

	content = buildMessages("", nil, "q")
	require.Len(t, content, 1)
}
