// Package llm provides the client for downstream language model backends
// and the token usage estimator.
//
// Purpose:
//   This package forwards routed queries to the model backend selected for
//   the final difficulty tier and estimates token consumption for the usage
//   ledger.
//
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client forwards queries to model backends over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend client. baseURL is the inference gateway; the
// model is addressed per request.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CompletionRequest is the payload sent to a model backend.
type CompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// CompletionResponse is a model backend's answer.
type CompletionResponse struct {
	Text      string `json:"text"`
	LatencyMS int64  `json:"-"`
}

// Complete sends the query to the given model and returns the generated
// answer. Any transport error, non-200 status, or empty answer is a backend
// failure surfaced to the caller.
func (c *Client) Complete(ctx context.Context, model, query string) (*CompletionResponse, error) {
	reqBody, err := json.Marshal(CompletionRequest{Model: model, Prompt: query})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal backend response: %w", err)
	}
	if parsed.Text == "" {
		return nil, fmt.Errorf("backend %s returned an empty answer", model)
	}

	latency := time.Since(start)
	c.logger.Debug("backend completion",
		zap.String("model", model),
		zap.Duration("latency", latency),
	)

	return &CompletionResponse{Text: parsed.Text, LatencyMS: latency.Milliseconds()}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
