package tasks_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"toolbox/internal/services"
	"toolbox/internal/tasks"
	"toolbox/internal/testsupport"
)

func TestCreateAndLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := services.WithRequestID(context.Background(), "req-1")
	task, err := store.Create(ctx, "convert_all", "/tmp/images")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if task.ID == "" || task.Status != tasks.StatusPending {
		t.Fatalf("unexpected task %#v", task)
	}
	if task.RequestID != "req-1" {
		t.Fatalf("expected request id to be recorded, got %q", task.RequestID)
	}

	if err := store.Start(ctx, task.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := store.Complete(ctx, task.ID, "3 converted, 0 failed"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	fetched, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Status != tasks.StatusCompleted || fetched.Message != "3 converted, 0 failed" {
		t.Fatalf("unexpected fetched task %#v", fetched)
	}
	if fetched.Target != "/tmp/images" {
		t.Fatalf("unexpected target %q", fetched.Target)
	}
}

func TestTerminalTasksRejectTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task, err := store.Create(ctx, "run_job", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Fail(ctx, task.ID, services.KindJobFailed, "boom"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	err = store.Complete(ctx, task.ID, "late")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	fetched, _ := store.Get(ctx, task.ID)
	if fetched.ErrorKind != services.KindJobFailed || fetched.Message != "boom" {
		t.Fatalf("unexpected failed task %#v", fetched)
	}
}

func TestTransitionMissingTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.Start(context.Background(), "does-not-exist")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	task, err := store.Get(context.Background(), "does-not-exist")
	if err != nil || task != nil {
		t.Fatalf("expected nil task, got %#v (%v)", task, err)
	}
}

func TestCreateRequiresKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Create(context.Background(), " ", "x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, _ := store.Create(ctx, "convert_all", "a")
	second, _ := store.Create(ctx, "run_transcode", "b")
	third, _ := store.Create(ctx, "convert_all", "c")
	if err := store.Fail(ctx, second.ID, services.KindInvalidParams, "bad"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	all, err := store.List(ctx, tasks.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != third.ID || all[2].ID != first.ID {
		t.Fatalf("expected newest first, got %#v", all)
	}

	converts, err := store.List(ctx, tasks.ListOptions{Kind: "convert_all", Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(converts) != 1 || converts[0].ID != third.ID {
		t.Fatalf("unexpected filtered list %#v", converts)
	}

	failed, err := store.List(ctx, tasks.ListOptions{Statuses: []tasks.Status{tasks.StatusFailed}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != second.ID {
		t.Fatalf("unexpected failed list %#v", failed)
	}
}

func TestHealthAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done, _ := store.Create(ctx, "convert_one", "x.webp")
	_ = store.Complete(ctx, done.ID, "ok")
	running, _ := store.Create(ctx, "run_job", "")
	_ = store.Start(ctx, running.ID)
	_, _ = store.Create(ctx, "save_settings", "")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Completed != 1 || health.Running != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health %#v", health)
	}

	interrupted, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if interrupted != 2 {
		t.Fatalf("expected 2 interrupted tasks, got %d", interrupted)
	}
	fetched, _ := store.Get(ctx, running.ID)
	if fetched.Status != tasks.StatusFailed || fetched.Message != tasks.DaemonStopReason {
		t.Fatalf("unexpected interrupted task %#v", fetched)
	}

	removed, err := store.ClearFinished(ctx)
	if err != nil {
		t.Fatalf("ClearFinished failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
}

func TestPruneBefore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task, _ := store.Create(ctx, "convert_one", "x.webp")
	_ = store.Complete(ctx, task.ID, "ok")

	removed, err := store.PruneBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || removed != 0 {
		t.Fatalf("expected nothing pruned, got %d (%v)", removed, err)
	}
	removed, err = store.PruneBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("expected one pruned, got %d (%v)", removed, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := tasks.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	task, _ := store.Create(context.Background(), "convert_all", "dir")
	_ = store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	fetched, err := reopened.Get(context.Background(), task.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected task after reopen, got %#v (%v)", fetched, err)
	}
}

func setSchemaVersion(t *testing.T, path string, version int) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE schema_version SET version = ?", version); err != nil {
		t.Fatalf("set schema version: %v", err)
	}
}

func setOwnerPID(t *testing.T, path, id string, pid int) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE tasks SET owner_pid = ? WHERE id = ?", pid, id); err != nil {
		t.Fatalf("set owner pid: %v", err)
	}
}

func TestFailInterruptedSparesLiveOwners(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	live, _ := store.Create(ctx, "convert_all", "/in")
	_ = store.Start(ctx, live.ID)
	setOwnerPID(t, store.Path(), live.ID, os.Getppid())

	// Above the largest pid_max Linux allows, so no such process exists.
	dead, _ := store.Create(ctx, "run_job", "replicate")
	setOwnerPID(t, store.Path(), dead.ID, 1<<22+7)

	own, _ := store.Create(ctx, "delete_matching", "/in")

	interrupted, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if interrupted != 2 {
		t.Fatalf("expected 2 interrupted tasks, got %d", interrupted)
	}
	if fetched, _ := store.Get(ctx, live.ID); fetched.Status != tasks.StatusRunning {
		t.Fatalf("task of a live process was failed: %#v", fetched)
	}
	for _, id := range []string{dead.ID, own.ID} {
		if fetched, _ := store.Get(ctx, id); fetched.Status != tasks.StatusFailed {
			t.Fatalf("expected %s failed, got %#v", id, fetched)
		}
	}
}

func TestOlderSchemaIsRebuilt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := tasks.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if _, err := store.Create(context.Background(), "convert_all", "dir"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = store.Close()
	setSchemaVersion(t, path, 0)

	reopened, err := tasks.OpenPath(path)
	if err != nil {
		t.Fatalf("expected rebuild of old schema, got %v", err)
	}
	defer reopened.Close()
	items, err := reopened.List(context.Background(), tasks.ListOptions{})
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty history after rebuild, got %d (%v)", len(items), err)
	}
}

func TestNewerSchemaIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, err := tasks.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	_ = store.Close()
	setSchemaVersion(t, path, 99)

	if _, err := tasks.OpenPath(path); !errors.Is(err, tasks.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := tasks.ParseStatus(" Running "); !ok || status != tasks.StatusRunning {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := tasks.ParseStatus("review"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
