package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/dispatch"
)

// DefaultPollInterval is how often Ask polls for more of the answer.
const DefaultPollInterval = 200 * time.Millisecond

// Client talks to a Server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPollInterval sets the delay between polls in Ask.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends a question and returns its id.
func (c *Client) Submit(ctx context.Context, req QuestionRequest) (core.QuestionID, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode question: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+QuestionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp QuestionResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	return resp.QuestionID, nil
}

// Poll fetches whatever part of the answer arrived since the last poll.
func (c *Client) Poll(ctx context.Context, id core.QuestionID) (core.Answer, error) {
	u := c.baseURL + AnswersPath + "?" + url.Values{"question_id": {id.String()}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.Answer{}, err
	}

	var answer core.Answer
	if err := c.do(httpReq, &answer); err != nil {
		return core.Answer{}, err
	}
	return answer, nil
}

// Stats fetches the server's dispatcher statistics.
func (c *Client) Stats(ctx context.Context) (dispatch.Stats, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return dispatch.Stats{}, err
	}

	var stats dispatch.Stats
	if err := c.do(httpReq, &stats); err != nil {
		return dispatch.Stats{}, err
	}
	return stats, nil
}

// Ask submits a question and polls until the answer finishes. onPartial,
// if non-nil, is called with every non-empty poll result. The returned
// Answer holds the full text and the last conversation and parent ids.
func (c *Client) Ask(ctx context.Context, req QuestionRequest, onPartial func(core.Answer)) (core.Answer, error) {
	id, err := c.Submit(ctx, req)
	if err != nil {
		return core.Answer{}, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var (
		result core.Answer
		text   strings.Builder
	)
	for {
		answer, err := c.Poll(ctx, id)
		if err != nil {
			return core.Answer{}, err
		}
		text.WriteString(answer.Text)
		if answer.ConversationID != "" {
			result.ConversationID = answer.ConversationID
		}
		if answer.ParentID != "" {
			result.ParentID = answer.ParentID
		}
		if onPartial != nil && (answer.Text != "" || answer.Finished) {
			onPartial(answer)
		}
		if answer.Finished {
			result.Text = text.String()
			result.Finished = true
			result.Error = answer.Error
			return result, nil
		}

		select {
		case <-ctx.Done():
			return core.Answer{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
