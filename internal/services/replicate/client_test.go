package replicate_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"toolbox/internal/longpoll"
	"toolbox/internal/services/replicate"
	"toolbox/internal/value"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeReplicate struct {
	mu       sync.Mutex
	statuses []string
	final    map[string]any
	polls    int
	lastBody map[string]any
}

func (f *fakeReplicate) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token r8-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &f.lastBody); err != nil {
				t.Errorf("decode submit body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/pred-1":
			f.polls++
			if f.polls <= len(f.statuses) {
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": f.statuses[f.polls-1]})
				return
			}
			_ = json.NewEncoder(w).Encode(f.final)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestRunJobThroughReplicate(t *testing.T) {
	fake := &fakeReplicate{
		statuses: []string{"starting", "processing"},
		final: map[string]any{
			"id":     "pred-1",
			"status": "succeeded",
			"output": []any{"https://replicate.delivery/out-0.png"},
		},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := replicate.New(server.URL + "/v1/")
	req := longpoll.Request{
		Target:     "5c7d5dc6dd8bf75c1acaa8565735e7986bc5b66206b55cca93cb72c9bf15ccaa",
		Input:      value.MustParse(`{"prompt":"a lighthouse","num_outputs":1}`),
		Credential: "r8-test",
	}
	result, err := longpoll.Run(context.Background(), client, req, longpoll.WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := value.MustParse(`["https://replicate.delivery/out-0.png"]`)
	if !result.Output.Equal(want) {
		t.Fatalf("unexpected output %s", result.Output)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 polls, got %d", result.Attempts)
	}
	if fake.lastBody["version"] != req.Target {
		t.Fatalf("unexpected submitted version %v", fake.lastBody["version"])
	}
	input, ok := fake.lastBody["input"].(map[string]any)
	if !ok || input["prompt"] != "a lighthouse" {
		t.Fatalf("unexpected submitted input %v", fake.lastBody["input"])
	}
}

func TestRunJobFailureReason(t *testing.T) {
	tests := []struct {
		name   string
		final  map[string]any
		reason string
	}{
		{"error string", map[string]any{"id": "pred-1", "status": "failed", "error": "NSFW content detected"}, "NSFW content detected"},
		{"no error field", map[string]any{"id": "pred-1", "status": "failed"}, longpoll.UnknownReason},
		{"canceled", map[string]any{"id": "pred-1", "status": "canceled", "error": nil}, longpoll.UnknownReason},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeReplicate{statuses: []string{"starting"}, final: tc.final}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			client := replicate.New(server.URL + "/v1")
			_, err := longpoll.Run(context.Background(), client,
				longpoll.Request{Target: "v", Credential: "r8-test"}, longpoll.WithSleeper(noSleep))
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

func TestSubmitRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	}))
	defer server.Close()

	client := replicate.New(server.URL)
	_, err := client.Submit(context.Background(), longpoll.Request{Target: "v", Credential: "bad"})
	if !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitRequiresCredential(t *testing.T) {
	client := replicate.New("http://127.0.0.1:1")
	_, err := client.Submit(context.Background(), longpoll.Request{Target: "v"})
	if !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitWithoutIDFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "starting"})
	}))
	defer server.Close()

	_, err := longpoll.Run(context.Background(), replicate.New(server.URL),
		longpoll.Request{Target: "v", Credential: "k"}, longpoll.WithSleeper(noSleep))
	if !errors.Is(err, longpoll.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestPollHTTPErrorIsFatal(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "p"})
			return
		}
		polls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := longpoll.Run(context.Background(), replicate.New(server.URL),
		longpoll.Request{Target: "v", Credential: "k"}, longpoll.WithSleeper(noSleep))
	if !errors.Is(err, longpoll.ErrPoll) {
		t.Fatalf("expected ErrPoll, got %v", err)
	}
	if polls != 1 {
		t.Fatalf("expected one poll, got %d", polls)
	}
}

func TestRunJobKeepsRawStatusCasing(t *testing.T) {
	for _, raw := range []string{"Succeeded", "Queued"} {
		t.Run(raw, func(t *testing.T) {
			fake := &fakeReplicate{final: map[string]any{"id": "pred-1", "status": raw, "output": "x"}}
			server := httptest.NewServer(fake.handler(t))
			defer server.Close()

			client := replicate.New(server.URL + "/v1")
			_, err := longpoll.Run(context.Background(), client,
				longpoll.Request{Target: "v", Credential: "r8-test"}, longpoll.WithSleeper(noSleep))
			var unknown *longpoll.UnknownStatusError
			if !errors.As(err, &unknown) {
				t.Fatalf("expected UnknownStatusError, got %v", err)
			}
			if unknown.Value != raw {
				t.Fatalf("unknown value = %q, want %q", unknown.Value, raw)
			}
		})
	}
}
