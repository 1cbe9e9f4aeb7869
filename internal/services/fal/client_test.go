package fal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"toolbox/internal/longpoll"
	"toolbox/internal/services"
	"toolbox/internal/services/fal"
	"toolbox/internal/value"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeQueue struct {
	mu         sync.Mutex
	statuses   []map[string]any
	resultCode int
	result     any
	polls      int
	submitted  map[string]any
}

func (f *fakeQueue) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key fal-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/fal-ai/bria/background/remove":
			if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
				t.Errorf("decode submit body: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req-42", "status": "IN_QUEUE"})
		case r.Method == http.MethodGet && r.URL.Path == "/fal-ai/bria/requests/req-42/status":
			status := f.statuses[f.polls]
			if f.polls < len(f.statuses)-1 {
				f.polls++
			}
			_ = json.NewEncoder(w).Encode(status)
		case r.Method == http.MethodGet && r.URL.Path == "/fal-ai/bria/requests/req-42":
			if f.resultCode != 0 {
				w.WriteHeader(f.resultCode)
			}
			_ = json.NewEncoder(w).Encode(f.result)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newRequest() longpoll.Request {
	return longpoll.Request{
		Target:     "fal-ai/bria/background/remove",
		Input:      value.MustParse(`{"image_url":"https://example.com/cat.png","sync_mode":true}`),
		Credential: "fal-key",
	}
}

func TestFALCompleted(t *testing.T) {
	fake := &fakeQueue{
		statuses: []map[string]any{
			{"status": "IN_QUEUE", "queue_position": 2},
			{"status": "IN_PROGRESS"},
			{"status": "COMPLETED"},
		},
		result: map[string]any{"image": map[string]any{"url": "https://fal.media/out.png"}},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := fal.New(fal.WithQueueURL(server.URL + "/"))
	result, err := longpoll.Run(context.Background(), client, newRequest(), longpoll.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ID != "req-42" || result.Attempts != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	want := value.MustParse(`{"image":{"url":"https://fal.media/out.png"}}`)
	if !result.Output.Equal(want) {
		t.Fatalf("unexpected output %s", result.Output)
	}
	if fake.submitted["image_url"] != "https://example.com/cat.png" {
		t.Fatalf("expected input as the request body, got %v", fake.submitted)
	}
}

func TestFALFailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		status     map[string]any
		resultCode int
		result     any
		reason     string
	}{
		{
			name:   "error on completed status",
			status: map[string]any{"status": "COMPLETED", "error": "Internal error"},
			reason: "Internal error",
		},
		{
			name:       "rejected result with string detail",
			status:     map[string]any{"status": "COMPLETED"},
			resultCode: http.StatusUnprocessableEntity,
			result:     map[string]any{"detail": "image_url is not reachable"},
			reason:     "image_url is not reachable",
		},
		{
			name:       "rejected result with validation list",
			status:     map[string]any{"status": "COMPLETED"},
			resultCode: http.StatusUnprocessableEntity,
			result:     map[string]any{"detail": []any{map[string]any{"msg": "field required"}}},
			reason:     `{"msg":"field required"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeQueue{statuses: []map[string]any{tc.status}, resultCode: tc.resultCode, result: tc.result}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			_, err := longpoll.Run(context.Background(), fal.New(fal.WithQueueURL(server.URL)), newRequest(),
				longpoll.WithSleeper(noSleep))
			var failed *longpoll.JobFailedError
			if !errors.As(err, &failed) {
				t.Fatalf("expected JobFailedError, got %v", err)
			}
			if failed.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", failed.Reason, tc.reason)
			}
		})
	}
}

func TestFALUnknownStatusPassesThrough(t *testing.T) {
	fake := &fakeQueue{statuses: []map[string]any{{"status": "PAUSED"}}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := longpoll.Run(context.Background(), fal.New(fal.WithQueueURL(server.URL)), newRequest(),
		longpoll.WithSleeper(noSleep))
	var unknown *longpoll.UnknownStatusError
	if !errors.As(err, &unknown) || unknown.Value != "PAUSED" {
		t.Fatalf("expected UnknownStatusError for PAUSED, got %v", err)
	}
}

func TestFALSubmitValidation(t *testing.T) {
	client := fal.New(fal.WithQueueURL("http://127.0.0.1:1"))

	_, err := client.Submit(context.Background(), longpoll.Request{Target: " / ", Credential: "fal-key"})
	if !errors.Is(err, longpoll.ErrSubmission) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected submission validation error, got %v", err)
	}
	_, err = client.Submit(context.Background(), longpoll.Request{Target: "fal-ai/flux/dev"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without key, got %v", err)
	}
}

func TestFALSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid key"}`))
	}))
	defer server.Close()

	_, err := fal.New(fal.WithQueueURL(server.URL)).Submit(context.Background(), newRequest())
	if !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}
