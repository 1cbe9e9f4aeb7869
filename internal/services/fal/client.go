// Package fal implements the longpoll Backend for the fal.ai queue API.
//
// A job is submitted to {queue}/{model}, its state is read from
// {queue}/{app}/requests/{id}/status, and the result document is fetched
// from {queue}/{app}/requests/{id} once the state reaches COMPLETED. The app
// path is the first two segments of the model id.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	// DefaultQueueURL is the public fal.ai queue root.
	DefaultQueueURL    = "https://queue.fal.run"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 512
)

// Client talks to the fal.ai queue. The model id travels in
// longpoll.Request.Target.
type Client struct {
	queueURL   string
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

// WithQueueURL overrides the queue root.
func WithQueueURL(root string) Option {
	return func(c *Client) {
		if root = strings.TrimRight(strings.TrimSpace(root), "/"); root != "" {
			c.queueURL = root
		}
	}
}

// New constructs a fal.ai client.
func New(opts ...Option) *Client {
	c := &Client{
		queueURL:   DefaultQueueURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the backend in logs.
func (c *Client) Name() string { return "fal" }

type submitResponse struct {
	RequestID string `json:"request_id"`
}

type statusResponse struct {
	Status string      `json:"status"`
	Error  value.Value `json:"error"`
}

// httpStatusError is a non-2xx response. Its detail is reported as the job
// failure reason when the result fetch is rejected.
type httpStatusError struct {
	code int
	body []byte
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("fal request: http %d: %s", e.code, snippet(e.body))
}

// Submit enqueues req.Input for the model named by req.Target.
func (c *Client) Submit(ctx context.Context, req longpoll.Request) (string, error) {
	model := modelPath(req.Target)
	if model == "" {
		return "", fmt.Errorf("%w: fal: model id required: %w", longpoll.ErrSubmission, services.ErrValidation)
	}
	if strings.TrimSpace(req.Credential) == "" {
		return "", fmt.Errorf("%w: fal: api key required: %w", longpoll.ErrSubmission, services.ErrConfiguration)
	}
	input := req.Input
	if input.IsNull() {
		input = value.Object()
	}
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("%w: fal: encode body: %w", longpoll.ErrSubmission, err)
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, c.queueURL+"/"+model, req.Credential, body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", longpoll.ErrSubmission, err)
	}
	return resp.RequestID, nil
}

// Fetch reads the request state and, once it is COMPLETED, the result.
func (c *Client) Fetch(ctx context.Context, req longpoll.Request, id string) (longpoll.Snapshot, error) {
	base := c.queueURL + "/" + appPath(req.Target) + "/requests/" + url.PathEscape(id)
	var status statusResponse
	if err := c.do(ctx, http.MethodGet, base+"/status", req.Credential, nil, &status); err != nil {
		return longpoll.Snapshot{}, err
	}
	switch status.Status {
	case "IN_QUEUE":
		return longpoll.Snapshot{Status: longpoll.StatusStarting}, nil
	case "IN_PROGRESS":
		return longpoll.Snapshot{Status: longpoll.StatusProcessing}, nil
	case "COMPLETED":
	default:
		return longpoll.Snapshot{Status: longpoll.Status(status.Status)}, nil
	}
	if reason := errorText(status.Error); reason != "" {
		return longpoll.Snapshot{Status: longpoll.StatusFailed, Error: reason}, nil
	}

	var output value.Value
	err := c.do(ctx, http.MethodGet, base, req.Credential, nil, &output)
	var statusErr *httpStatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.code < http.StatusInternalServerError:
		return longpoll.Snapshot{Status: longpoll.StatusFailed, Error: detailText(statusErr.body)}, nil
	case err != nil:
		return longpoll.Snapshot{}, err
	}
	return longpoll.Snapshot{Status: longpoll.StatusSucceeded, Output: output}, nil
}

// modelPath trims the target to a bare model id such as
// "fal-ai/bria/background/remove".
func modelPath(target string) string {
	return strings.Trim(strings.TrimSpace(target), "/")
}

// appPath keeps the owner and app segments of a model id.
func appPath(target string) string {
	parts := strings.SplitN(modelPath(target), "/", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint, key string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("fal request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+strings.TrimSpace(key))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal request: http error: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{code: resp.StatusCode, body: payload}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("fal request: decode response: %w", err)
	}
	return nil
}

// detailText extracts the "detail" member of an error body, which fal
// reports either as a string or as a list of validation entries.
func detailText(body []byte) string {
	parsed, err := value.Parse(body)
	if err != nil {
		return snippet(body)
	}
	if detail, ok := parsed.Get("detail"); ok {
		if text := errorText(detail); text != "" {
			return text
		}
	}
	return snippet(body)
}

func errorText(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return ""
	case value.KindString:
		s, _ := v.AsString()
		return strings.TrimSpace(s)
	case value.KindArray:
		parts := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ", ")
	default:
		return v.String()
	}
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}
