package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"toolbox/internal/config"
	"toolbox/internal/services"
)

const taskColumns = "id, kind, status, target, message, error_kind, request_id, created_at, updated_at"

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the task database for cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.TasksDBPath())
}

// OpenPath opens the database at dbPath and initializes its schema.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create records a new pending task.
func (s *Store) Create(ctx context.Context, kind, target string) (*Task, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, services.Wrap(services.ErrValidation, "tasks", "create", "task kind required", nil)
	}
	now := s.now()
	timestamp := now.Format(timeLayout)
	id := uuid.NewString()
	requestID, _ := services.RequestIDFromContext(ctx)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (id, kind, status, target, message, error_kind, request_id, owner_pid, created_at, updated_at)
         VALUES (?, ?, ?, ?, NULL, NULL, ?, ?, ?, ?)`,
		id,
		kind,
		StatusPending,
		nullableString(target),
		nullableString(requestID),
		os.Getpid(),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.Get(ctx, id)
}

// Start marks a pending task as running.
func (s *Store) Start(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusRunning, "", "", StatusPending)
}

// Complete marks a task as completed with a summary message.
func (s *Store) Complete(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, StatusCompleted, message, "", StatusPending, StatusRunning)
}

// Fail marks a task as failed and records the error taxonomy tag.
func (s *Store) Fail(ctx context.Context, id, errorKind, message string) error {
	return s.transition(ctx, id, StatusFailed, message, errorKind, StatusPending, StatusRunning)
}

func (s *Store) transition(ctx context.Context, id string, to Status, message, errorKind string, from ...Status) error {
	placeholders := make([]string, len(from))
	args := []any{to, nullableString(message), nullableString(errorKind), s.now().Format(timeLayout), id}
	for i, status := range from {
		placeholders[i] = "?"
		args = append(args, status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, message = COALESCE(?, message), error_kind = ?, updated_at = ?
         WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return services.Wrap(services.ErrNotFound, "tasks", "transition", fmt.Sprintf("task %s not found", id), nil)
		}
		return services.Wrap(services.ErrValidation, "tasks", "transition",
			fmt.Sprintf("task %s is %s; cannot move to %s", id, existing.Status, to), nil)
	}
	return nil
}

// Get fetches a task by id. A missing task returns nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks newest first, filtered by opts.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Task, error) {
	var (
		clauses []string
		args    []any
	)
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if kind := strings.TrimSpace(opts.Kind); kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, kind)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates task counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// processAlive reports whether pid names a running process. EPERM means it
// exists under another user.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// FailInterrupted marks pending or running tasks as failed when the process
// that created them is gone. Rows owned by the calling process are treated as
// leftovers of an earlier process that had the same pid, since the caller has
// not started any work yet. Tasks of a live `--local` process are untouched.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_pid FROM tasks WHERE status IN (?, ?)`, StatusPending, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("list interrupted tasks: %w", err)
	}
	self := os.Getpid()
	var stale []any
	for rows.Next() {
		var (
			id  string
			pid int
		)
		if err := rows.Scan(&id, &pid); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan interrupted task: %w", err)
		}
		if pid <= 0 || pid == self || !processAlive(pid) {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("list interrupted tasks: %w", err)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list interrupted tasks: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(stale)), ", ")
	args := append([]any{
		StatusFailed,
		DaemonStopReason,
		services.KindCanceled,
		s.now().Format(timeLayout),
		StatusPending,
		StatusRunning,
	}, stale...)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, message = ?, error_kind = ?, updated_at = ?
         WHERE status IN (?, ?) AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearFinished removes completed and failed tasks.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status IN (?, ?)`, StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear finished tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearAll removes every task.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return res.RowsAffected()
}

// PruneBefore removes finished tasks last updated before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted,
		StatusFailed,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	return res.RowsAffected()
}
