// Package archon is a client for the Archon agent platform API.
package archon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// DefaultBaseURL is the production Archon API endpoint.
const DefaultBaseURL = "https://api.archon.ai"

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

// AgentInfo describes a deployed agent as reported by the Archon API.
type AgentInfo struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

// Client talks to the Archon REST API. Read-only calls are retried on
// transient failures; an invocation is only retried when the request never
// reached the server.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

type clientConfig struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.baseURL = u
	}
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithMaxRetries bounds how many times a retryable call is retried.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// NewClient creates an Archon API client. Deadlines come from the caller's
// context, so the underlying HTTP client carries no timeout of its own.
func NewClient(opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:    DefaultBaseURL,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		apiKey:     cfg.apiKey,
		maxRetries: cfg.maxRetries,
		httpClient: cfg.httpClient,
	}
}

// GetAgent fetches a single agent by id.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentInfo, error) {
	var agent AgentInfo
	req := call{
		op:        fmt.Sprintf("get agent %s", agentID),
		method:    http.MethodGet,
		path:      "/agents/" + url.PathEscape(agentID),
		agentID:   agentID,
		retryable: true,
	}
	if err := c.do(ctx, req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents fetches a page of agents.
func (c *Client) ListAgents(ctx context.Context, limit, offset int) ([]AgentInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var agents []AgentInfo
	req := call{
		op:     "list agents",
		method: http.MethodGet,
		path: "/agents?" + url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		}.Encode(),
		retryable: true,
	}
	if err := c.do(ctx, req, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// InvokeAgent sends inputs to an agent and returns its outputs. The call is
// not retried once the request has reached the server: an invocation may
// have side effects, and a slow response is the test's own signal.
func (c *Client) InvokeAgent(ctx context.Context, agentID string, inputs testsuite.Values) (testsuite.Values, error) {
	body, err := json.Marshal(map[string]testsuite.Values{"inputs": inputs})
	if err != nil {
		return nil, &APIError{Op: fmt.Sprintf("invoke agent %s", agentID), Err: err}
	}
	var outputs testsuite.Values
	req := call{
		op:      fmt.Sprintf("invoke agent %s", agentID),
		method:  http.MethodPost,
		path:    "/agents/" + url.PathEscape(agentID) + "/invoke",
		agentID: agentID,
		body:    body,
	}
	if err := c.do(ctx, req, &outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// GetAgentMetrics fetches operational metrics for an agent.
func (c *Client) GetAgentMetrics(ctx context.Context, agentID string) (map[string]any, error) {
	var metrics map[string]any
	req := call{
		op:        fmt.Sprintf("get metrics for agent %s", agentID),
		method:    http.MethodGet,
		path:      "/agents/" + url.PathEscape(agentID) + "/metrics",
		agentID:   agentID,
		retryable: true,
	}
	if err := c.do(ctx, req, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// UpdateAgentMetadata merges metadata into an agent record and returns the
// updated agent.
func (c *Client) UpdateAgentMetadata(ctx context.Context, agentID string, metadata map[string]any) (*AgentInfo, error) {
	body, err := json.Marshal(map[string]any{"metadata": metadata})
	if err != nil {
		return nil, &APIError{Op: fmt.Sprintf("update metadata for agent %s", agentID), Err: err}
	}
	var agent AgentInfo
	req := call{
		op:      fmt.Sprintf("update metadata for agent %s", agentID),
		method:  http.MethodPatch,
		path:    "/agents/" + url.PathEscape(agentID),
		agentID: agentID,
		body:    body,
	}
	if err := c.do(ctx, req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// call describes one API request. retryable marks calls that are safe to
// repeat after a 5xx response; transport failures before a response arrives
// are retried for every call.
type call struct {
	op        string
	method    string
	path      string
	agentID   string
	body      []byte
	retryable bool
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		retry, err := c.doOnce(ctx, req, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt >= c.maxRetries {
			return lastErr
		}
		backoff := time.Duration(attempt+1) * 500 * time.Millisecond
		slog.Debug("retrying archon api call", "op", req.op, "attempt", attempt+1, "backoff", backoff)
		if err := sleep(ctx, backoff); err != nil {
			return lastErr
		}
	}
}

// doOnce executes the request a single time. The first return value reports
// whether the failure is worth retrying.
func (c *Client) doOnce(ctx context.Context, req call, out any) (bool, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return false, &APIError{Op: req.op, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Deadline or cancellation is the caller's decision, not a
			// transient fault.
			return false, ctx.Err()
		}
		return true, &APIError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.agentID != "" {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return false, &NotFoundError{AgentID: req.agentID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Op: req.op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		return req.retryable && resp.StatusCode >= 500, apiErr
	}

	if out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, &APIError{Op: req.op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
