package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"toolbox/internal/api"
	"toolbox/internal/tasks"
	"toolbox/internal/testsupport"
)

type statusStub struct {
	resp api.StatusResponse
	err  error
}

func (s statusStub) Status(context.Context) (api.StatusResponse, error) {
	return s.resp, s.err
}

func newTestAPIServer(t *testing.T, status statusSource) (*apiServer, *tasks.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return &apiServer{status: status, taskSvc: api.NewTaskService(store)}, store
}

func TestAPIServerHandleTasks(t *testing.T) {
	srv, store := newTestAPIServer(t, statusStub{})
	ctx := context.Background()
	first, _ := store.Create(ctx, api.KindConvertAll, "/in")
	_ = store.Complete(ctx, first.ID, "3 converted")
	if _, err := store.Create(ctx, api.KindRunJob, "replicate"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=completed", nil)
	w := httptest.NewRecorder()
	srv.handleTasks(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.TasksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(resp.Tasks))
	}
	if resp.Tasks[0].Message != "3 converted" {
		t.Fatalf("unexpected message: %q", resp.Tasks[0].Message)
	}
}

func TestAPIServerHandleTasksRejectsBadLimit(t *testing.T) {
	srv, _ := newTestAPIServer(t, statusStub{})
	w := httptest.NewRecorder()
	srv.handleTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerHandleTask(t *testing.T) {
	srv, store := newTestAPIServer(t, statusStub{})
	task, err := store.Create(context.Background(), api.KindConvertOne, "a.webp")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := httptest.NewRecorder()
	srv.handleTask(w, httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var item api.TaskItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.ID != task.ID || item.Kind != api.KindConvertOne {
		t.Fatalf("unexpected item: %+v", item)
	}

	w = httptest.NewRecorder()
	srv.handleTask(w, httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", w.Code)
	}
}

func TestAPIServerHandleStatus(t *testing.T) {
	srv, _ := newTestAPIServer(t, statusStub{resp: api.StatusResponse{DaemonRunning: true, PID: 42}})

	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.DaemonRunning || resp.PID != 42 {
		t.Fatalf("unexpected status: %+v", resp)
	}

	w = httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerHandleStatusError(t *testing.T) {
	srv, _ := newTestAPIServer(t, statusStub{err: errors.New("boom")})
	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestAPIServer(t, statusStub{})
	handler := srv.routes("secret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddlewareOpenWithoutToken(t *testing.T) {
	srv, _ := newTestAPIServer(t, statusStub{})
	w := httptest.NewRecorder()
	srv.routes("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected open access without token, got %d", w.Code)
	}
}
