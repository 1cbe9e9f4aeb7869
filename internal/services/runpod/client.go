// Package runpod implements the longpoll Backend for RunPod serverless
// endpoints.
package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"toolbox/internal/longpoll"
	"toolbox/internal/services"
	"toolbox/internal/value"
)

const (
	// DefaultAPIRoot prefixes bare endpoint ids.
	DefaultAPIRoot     = "https://api.runpod.ai/v2"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 512
)

// Client talks to RunPod serverless endpoints. The endpoint itself travels in
// longpoll.Request.Target, either as a full URL or as a bare endpoint id.
type Client struct {
	apiRoot    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithAPIRoot overrides the root used to expand bare endpoint ids.
func WithAPIRoot(root string) Option {
	return func(c *Client) {
		if root = strings.TrimRight(strings.TrimSpace(root), "/"); root != "" {
			c.apiRoot = root
		}
	}
}

// New constructs a RunPod client.
func New(opts ...Option) *Client {
	c := &Client{
		apiRoot:    DefaultAPIRoot,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the backend in logs.
func (c *Client) Name() string { return "runpod" }

// EndpointURL resolves target to the endpoint base URL, dropping a trailing
// /run segment copied from the RunPod console.
func (c *Client) EndpointURL(target string) string {
	target = strings.TrimRight(strings.TrimSpace(target), "/")
	target = strings.TrimSuffix(target, "/run")
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return c.apiRoot + "/" + url.PathEscape(target)
}

type runRequest struct {
	Input value.Value `json:"input"`
}

type jobStatus struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output value.Value `json:"output"`
	Error  value.Value `json:"error"`
}

// Submit queues a job on the endpoint named by req.Target.
func (c *Client) Submit(ctx context.Context, req longpoll.Request) (string, error) {
	endpoint := c.EndpointURL(req.Target)
	if endpoint == "" {
		return "", fmt.Errorf("%w: runpod: endpoint required: %w", longpoll.ErrSubmission, services.ErrConfiguration)
	}
	if strings.TrimSpace(req.Credential) == "" {
		return "", fmt.Errorf("%w: runpod: api key required: %w", longpoll.ErrSubmission, services.ErrConfiguration)
	}
	input := req.Input
	if input.IsNull() {
		input = value.Object()
	}
	body, err := json.Marshal(runRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("%w: runpod: encode body: %w", longpoll.ErrSubmission, err)
	}
	var status jobStatus
	if err := c.do(ctx, http.MethodPost, endpoint+"/run", req.Credential, body, &status); err != nil {
		return "", fmt.Errorf("%w: %w", longpoll.ErrSubmission, err)
	}
	return status.ID, nil
}

// Fetch reads the job status.
func (c *Client) Fetch(ctx context.Context, req longpoll.Request, id string) (longpoll.Snapshot, error) {
	endpoint := c.EndpointURL(req.Target) + "/status/" + url.PathEscape(id)
	var status jobStatus
	if err := c.do(ctx, http.MethodGet, endpoint, req.Credential, nil, &status); err != nil {
		return longpoll.Snapshot{}, err
	}
	snap := longpoll.Snapshot{
		Status: normalizeStatus(status.Status),
		Output: status.Output,
	}
	if s, ok := status.Error.AsString(); ok {
		snap.Error = s
	} else if !status.Error.IsNull() {
		snap.Error = status.Error.String()
	}
	return snap, nil
}

func normalizeStatus(raw string) longpoll.Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "IN_QUEUE":
		return longpoll.StatusStarting
	case "IN_PROGRESS":
		return longpoll.StatusProcessing
	case "COMPLETED":
		return longpoll.StatusSucceeded
	case "FAILED":
		return longpoll.StatusFailed
	case "CANCELLED", "TIMED_OUT":
		return longpoll.StatusCanceled
	default:
		return longpoll.Status(raw)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint, key string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("runpod request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(key))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runpod request: http error: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("runpod request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(payload))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody] + "..."
		}
		return fmt.Errorf("runpod request: http %d: %s", resp.StatusCode, text)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("runpod request: decode response: %w", err)
	}
	return nil
}
