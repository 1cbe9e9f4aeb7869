package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"toolbox/internal/api"
	"toolbox/internal/config"
	"toolbox/internal/logging"
	"toolbox/internal/preflight"
	"toolbox/internal/tasks"
)

// Daemon owns the shared service, the task history store, and the
// single-instance lock for the long-running toolbox process.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *tasks.Store
	service *api.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	api     *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *tasks.Store, svc *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || svc == nil {
		return nil, errors.New("daemon requires config, task store, and service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		service:  svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, marks tasks left over from a previous run
// as failed, and starts the optional HTTP status server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another toolbox daemon instance is already running")
	}

	if count, err := d.store.FailInterrupted(ctx); err != nil {
		d.logger.Warn("failed to close out interrupted tasks",
			logging.Error(err),
			logging.String(logging.FieldEventType, "interrupted_tasks_failed"),
			logging.String(logging.FieldErrorHint, "check task database permissions"),
		)
	} else if count > 0 {
		d.logger.Info("marked interrupted tasks as failed",
			logging.Int64("count", count),
			logging.String(logging.FieldEventType, "interrupted_tasks_closed"),
		)
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldImpact, "operations depending on this check will fail"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.api = srv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("toolbox daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the status server and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
		)
	}
	d.running.Store(false)
	d.logger.Info("toolbox daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the task store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Service returns the operation service shared by every client.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// LockPath returns the single-instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string {
	return d.cfg.LogFilePath()
}

// Status returns service status with daemon runtime details filled in.
func (d *Daemon) Status(ctx context.Context) (api.StatusResponse, error) {
	status, err := d.service.Status(ctx, api.StatusRequest{})
	if err != nil {
		return api.StatusResponse{}, err
	}
	status.DaemonRunning = d.running.Load()
	status.PID = os.Getpid()
	return status, nil
}

// ClearTasks removes finished task history, or every entry when all is set.
func (d *Daemon) ClearTasks(ctx context.Context, all bool) (int64, error) {
	if all {
		return d.store.ClearAll(ctx)
	}
	return d.store.ClearFinished(ctx)
}
