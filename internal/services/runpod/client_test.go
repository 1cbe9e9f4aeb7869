package runpod_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"toolbox/internal/longpoll"
	"toolbox/internal/services/runpod"
	"toolbox/internal/value"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newRunPodServer(t *testing.T, statuses []map[string]any) *httptest.Server {
	t.Helper()
	polls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer rp-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/abc123/run":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if _, ok := body["input"]; !ok {
				t.Errorf("expected input in body, got %v", body)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-9", "status": "IN_QUEUE"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/abc123/status/job-9":
			status := statuses[polls]
			if polls < len(statuses)-1 {
				polls++
			}
			_ = json.NewEncoder(w).Encode(status)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRunPodCompleted(t *testing.T) {
	server := newRunPodServer(t, []map[string]any{
		{"id": "job-9", "status": "IN_QUEUE"},
		{"id": "job-9", "status": "IN_PROGRESS"},
		{"id": "job-9", "status": "COMPLETED", "output": map[string]any{"images": []any{"aGVsbG8="}}},
	})
	defer server.Close()

	req := longpoll.Request{
		Target:     server.URL + "/v2/abc123/run",
		Input:      value.MustParse(`{"prompt":"watercolor","strength":0.6}`),
		Credential: "rp-key",
	}
	result, err := longpoll.Run(context.Background(), runpod.New(), req, longpoll.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	images, ok := result.Output.Get("images")
	if !ok || images.Len() != 1 {
		t.Fatalf("unexpected output %s", result.Output)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 polls, got %d", result.Attempts)
	}
}

func TestRunPodFailedAndCancelled(t *testing.T) {
	tests := []struct {
		name   string
		final  map[string]any
		reason string
	}{
		{"failed", map[string]any{"status": "FAILED", "error": "handler crashed"}, "handler crashed"},
		{"cancelled", map[string]any{"status": "CANCELLED"}, longpoll.UnknownReason},
		{"timed out", map[string]any{"status": "TIMED_OUT"}, longpoll.UnknownReason},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newRunPodServer(t, []map[string]any{tc.final})
			defer server.Close()

			req := longpoll.Request{Target: server.URL + "/v2/abc123", Credential: "rp-key"}
			_, err := longpoll.Run(context.Background(), runpod.New(), req, longpoll.WithSleeper(noSleep))
			var failed *longpoll.JobFailedError
			if !errors.As(err, &failed) || failed.Reason != tc.reason {
				t.Fatalf("expected JobFailedError(%q), got %v", tc.reason, err)
			}
		})
	}
}

func TestRunPodUnknownStatus(t *testing.T) {
	server := newRunPodServer(t, []map[string]any{{"status": "THROTTLED"}})
	defer server.Close()

	req := longpoll.Request{Target: server.URL + "/v2/abc123", Credential: "rp-key"}
	_, err := longpoll.Run(context.Background(), runpod.New(), req, longpoll.WithSleeper(noSleep))
	var unknown *longpoll.UnknownStatusError
	if !errors.As(err, &unknown) || unknown.Value != "THROTTLED" {
		t.Fatalf("expected UnknownStatusError, got %v", err)
	}
}

func TestEndpointURL(t *testing.T) {
	client := runpod.New(runpod.WithAPIRoot("https://example.test/v2/"))
	tests := map[string]string{
		"abc123":                            "https://example.test/v2/abc123",
		"https://api.runpod.ai/v2/abc/run/": "https://api.runpod.ai/v2/abc",
		"https://api.runpod.ai/v2/abc":      "https://api.runpod.ai/v2/abc",
		"  ":                                "",
	}
	for input, want := range tests {
		if got := client.EndpointURL(input); got != want {
			t.Errorf("EndpointURL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSubmitRequiresEndpointAndKey(t *testing.T) {
	client := runpod.New()
	if _, err := client.Submit(context.Background(), longpoll.Request{Credential: "k"}); !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected ErrSubmission without endpoint, got %v", err)
	}
	if _, err := client.Submit(context.Background(), longpoll.Request{Target: "abc"}); !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected ErrSubmission without key, got %v", err)
	}
}
