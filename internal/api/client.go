// Package api speaks the upstream completions dialect: a POST with the
// thinking parameter enabled, answered by a text/event-stream body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hicap-labs/thinkprobe/internal/chat"
	"github.com/hicap-labs/thinkprobe/internal/logging"
	"github.com/hicap-labs/thinkprobe/internal/sse"
)

// Request is one streaming exchange.
type Request struct {
	Model        string
	MaxTokens    int
	BudgetTokens int
	Messages     []chat.Message
}

type thinkingParam struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type requestBody struct {
	Stream    bool           `json:"stream"`
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Thinking  thinkingParam  `json:"thinking"`
	Messages  []chat.Message `json:"messages"`
}

// Stream is one open response stream. Close releases the connection; it is
// safe to call after the reader is drained.
type Stream struct {
	*sse.Reader
	body io.ReadCloser
}

func (s *Stream) Close() error { return s.body.Close() }

// Client issues streaming exchanges against one endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client for the endpoint. Deadlines come from the
// request context, so the underlying http.Client carries no timeout of its
// own; a fixed client timeout would kill long streams mid-flight.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 0},
	}
}

// Stream POSTs the exchange and returns once response headers arrive. A
// non-2xx status is returned as a *StatusError carrying a truncated body;
// connection failures come back classified. The caller owns Close on the
// returned stream.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	body := requestBody{
		Stream:    true,
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Thinking:  thinkingParam{Type: "enabled", BudgetTokens: req.BudgetTokens},
		Messages:  req.Messages,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	log := logging.With("api")
	log.Debug().
		Str("model", req.Model).
		Int("budget_tokens", req.BudgetTokens).
		Int("messages", len(req.Messages)).
		Msg("issuing streaming request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Classify(err, 0)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLen))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	return &Stream{Reader: sse.NewReader(resp.Body), body: resp.Body}, nil
}
