// Package replicate implements the longpoll Backend for the Replicate
// predictions API.
package replicate

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
	// DefaultBaseURL is the public Replicate API root.
	DefaultBaseURL     = "https://api.replicate.com/v1"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 512
)

// Client talks to the Replicate predictions API.
type Client struct {
	baseURL    string
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

// New constructs a client rooted at baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the backend in logs.
func (c *Client) Name() string { return "replicate" }

type predictionRequest struct {
	Version string      `json:"version"`
	Input   value.Value `json:"input"`
}

type prediction struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output value.Value `json:"output"`
	Error  value.Value `json:"error"`
}

// Submit creates a prediction for the model version in req.Target.
func (c *Client) Submit(ctx context.Context, req longpoll.Request) (string, error) {
	version := strings.TrimSpace(req.Target)
	if version == "" {
		return "", fmt.Errorf("%w: replicate: model version required: %w", longpoll.ErrSubmission, services.ErrValidation)
	}
	if strings.TrimSpace(req.Credential) == "" {
		return "", fmt.Errorf("%w: replicate: api token required: %w", longpoll.ErrSubmission, services.ErrConfiguration)
	}
	input := req.Input
	if input.IsNull() {
		input = value.Object()
	}
	body, err := json.Marshal(predictionRequest{Version: version, Input: input})
	if err != nil {
		return "", fmt.Errorf("%w: replicate: encode body: %w", longpoll.ErrSubmission, err)
	}

	var pred prediction
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", req.Credential, body, &pred); err != nil {
		return "", fmt.Errorf("%w: %w", longpoll.ErrSubmission, err)
	}
	return pred.ID, nil
}

// Fetch reads the prediction status.
func (c *Client) Fetch(ctx context.Context, req longpoll.Request, id string) (longpoll.Snapshot, error) {
	var pred prediction
	endpoint := c.baseURL + "/predictions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, req.Credential, nil, &pred); err != nil {
		return longpoll.Snapshot{}, err
	}
	return longpoll.Snapshot{
		Status: normalizeStatus(pred.Status),
		Output: pred.Output,
		Error:  errorText(pred.Error),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("replicate request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate request: http error: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("replicate request: http %d: %s", resp.StatusCode, snippet(payload))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("replicate request: decode response: %w", err)
	}
	return nil
}

// normalizeStatus keeps the raw value: Replicate already reports the
// lowercase longpoll states, and anything else (including a differently
// cased state) must reach the poller untouched.
func normalizeStatus(raw string) longpoll.Status {
	return longpoll.Status(raw)
}

func errorText(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return ""
	case value.KindString:
		s, _ := v.AsString()
		return s
	default:
		if detail, ok := v.Get("detail"); ok {
			if s, ok := detail.AsString(); ok {
				return s
			}
		}
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
