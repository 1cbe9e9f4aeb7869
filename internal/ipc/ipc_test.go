package ipc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"toolbox/internal/api"
	"toolbox/internal/config"
	"toolbox/internal/daemon"
	"toolbox/internal/ipc"
	"toolbox/internal/logging"
	"toolbox/internal/services"
	"toolbox/internal/testsupport"
)

const fixtureWebP = "../imageconv/testdata/logo.webp"

type harness struct {
	cfg      *config.Config
	client   *ipc.Client
	shutdown chan struct{}
}

func startServer(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	svc, err := api.New(cfg, api.WithTaskStore(store), api.WithLogger(logger))
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	d, err := daemon.New(cfg, store, svc, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	h := &harness{cfg: cfg, shutdown: make(chan struct{})}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, ipc.WithShutdown(func() {
		close(h.shutdown)
	}))
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	h.client = client
	return h
}

func TestIPCServerClient(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	status, err := h.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.DaemonRunning {
		t.Fatal("expected daemon to be running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}

	src := filepath.Join(t.TempDir(), "logo.webp")
	testsupport.CopyFile(t, fixtureWebP, src)
	converted, err := h.client.ConvertOne(ctx, ipc.ConvertOneRequest{Path: src})
	if err != nil {
		t.Fatalf("ConvertOne RPC failed: %v", err)
	}
	if filepath.Ext(converted.Output) != ".png" {
		t.Fatalf("unexpected output %q", converted.Output)
	}

	history, err := h.client.Tasks(ctx, ipc.TasksRequest{Kind: api.KindConvertOne})
	if err != nil {
		t.Fatalf("Tasks RPC failed: %v", err)
	}
	if len(history.Tasks) != 1 || history.Tasks[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v", history.Tasks)
	}

	cleared, err := h.client.ClearTasks(ctx, false)
	if err != nil {
		t.Fatalf("ClearTasks RPC failed: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("removed = %d, want 1", cleared.Removed)
	}
}

func TestIPCErrorKindSurvivesTransport(t *testing.T) {
	h := startServer(t)

	_, err := h.client.ConvertAll(context.Background(), ipc.ConvertAllRequest{Dir: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	var remote *ipc.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
	if kind := services.Kind(err); kind != services.KindInvalidPath {
		t.Fatalf("kind = %q, want %q", kind, services.KindInvalidPath)
	}
	if strings.HasPrefix(err.Error(), "[") {
		t.Fatalf("kind prefix leaked into message: %q", err.Error())
	}
}

func TestIPCSettingsAndCheckPath(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	check, err := h.client.CheckPath(ctx, ipc.CheckPathRequest{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("CheckPath RPC failed: %v", err)
	}
	if !check.Exists || !check.IsDirectory {
		t.Fatalf("unexpected check result: %+v", check)
	}

	loaded, err := h.client.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings RPC failed: %v", err)
	}
	if _, err := h.client.SaveSettings(ctx, ipc.SaveSettingsRequest{Settings: loaded.Settings}); err != nil {
		t.Fatalf("SaveSettings RPC failed: %v", err)
	}
}

func TestIPCLogTail(t *testing.T) {
	h := startServer(t)
	content := "first req=a\nsecond req=b\nthird req=a\n"
	if err := os.WriteFile(h.cfg.LogFilePath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := h.client.LogTail(context.Background(), ipc.LogTailRequest{Offset: -1, Limit: 10, Match: "req=a"})
	if err != nil {
		t.Fatalf("LogTail RPC failed: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[1] != "third req=a" {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}
	if resp.Offset != int64(len(content)) {
		t.Fatalf("offset = %d, want %d", resp.Offset, len(content))
	}
}

func TestIPCStopTriggersShutdown(t *testing.T) {
	h := startServer(t)

	resp, err := h.client.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stopped response")
	}
	select {
	case <-h.shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown hook not called")
	}
}

func TestClientCallHonorsContext(t *testing.T) {
	h := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.client.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
