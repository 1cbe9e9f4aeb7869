package longpoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"toolbox/internal/logging"
	"toolbox/internal/services"
	"toolbox/internal/value"
)

const defaultInterval = time.Second

// Request describes one job. Target identifies what to run (a model version
// for Replicate, an endpoint for RunPod); Input is sent as the job payload.
type Request struct {
	Target     string      `json:"target"`
	Input      value.Value `json:"input"`
	Credential string      `json:"-"`
}

// Snapshot is one status observation returned by a Backend.
type Snapshot struct {
	Status Status
	Output value.Value
	Error  string
}

// Result is returned once a job succeeds.
type Result struct {
	ID       string      `json:"id"`
	Output   value.Value `json:"output"`
	Attempts int         `json:"attempts"`
}

// Backend speaks one provider's job API.
type Backend interface {
	// Name identifies the provider in logs.
	Name() string
	// Submit creates the job and returns its identifier.
	Submit(ctx context.Context, req Request) (string, error)
	// Fetch reads the current status of job id.
	Fetch(ctx context.Context, req Request, id string) (Snapshot, error)
}

// Poll describes one completed status check, for observers.
type Poll struct {
	ID      string
	Attempt int
	Status  Status
}

type runner struct {
	interval    time.Duration
	maxAttempts int
	sleeper     func(context.Context, time.Duration) error
	observer    func(Poll)
	logger      *slog.Logger
}

// Option customizes Run.
type Option func(*runner)

// WithInterval overrides the fixed delay between status checks (default 1s).
func WithInterval(d time.Duration) Option {
	return func(r *runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of status checks. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(r *runner) {
		if n >= 0 {
			r.maxAttempts = n
		}
	}
}

// WithSleeper overrides how poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(r *runner) {
		if sleeper != nil {
			r.sleeper = sleeper
		}
	}
}

// WithObserver registers a callback invoked after every status check.
func WithObserver(fn func(Poll)) Option {
	return func(r *runner) {
		r.observer = fn
	}
}

// WithLogger sets the logger used for poll diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Run submits req through backend and polls until the job reaches a terminal
// state. Transport failures while polling are fatal; there is no retry.
func Run(ctx context.Context, backend Backend, req Request, opts ...Option) (Result, error) {
	r := &runner{
		interval: defaultInterval,
		sleeper:  sleep,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if backend == nil {
		return Result{}, fmt.Errorf("%w: no backend configured: %w", ErrSubmission, services.ErrConfiguration)
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.logger, "longpoll")).
		With(logging.String("backend", backend.Name()))

	id, err := backend.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, ErrSubmission) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, fmt.Errorf("%w: response carried no job id", ErrSubmission)
	}
	logger.Info("job submitted", logging.String("job_id", id), logging.String("target", req.Target))

	for attempt := 1; ; attempt++ {
		if err := r.sleeper(ctx, r.interval); err != nil {
			return Result{}, fmt.Errorf("%w: job %s: %w", ErrPoll, id, err)
		}
		snap, err := backend.Fetch(ctx, req, id)
		if err != nil {
			return Result{}, fmt.Errorf("%w: job %s: %w", ErrPoll, id, err)
		}
		if r.observer != nil {
			r.observer(Poll{ID: id, Attempt: attempt, Status: snap.Status})
		}
		logger.Debug("job polled",
			logging.String("job_id", id),
			logging.Int("attempt", attempt),
			logging.String("status", string(snap.Status)),
		)

		switch {
		case snap.Status.Pending():
		case snap.Status == StatusSucceeded:
			logger.Info("job succeeded", logging.String("job_id", id), logging.Int("attempts", attempt))
			return Result{ID: id, Output: snap.Output, Attempts: attempt}, nil
		case snap.Status.Terminal():
			reason := strings.TrimSpace(snap.Error)
			if reason == "" {
				reason = UnknownReason
			}
			logger.Warn("job did not succeed",
				logging.String("job_id", id),
				logging.String("status", string(snap.Status)),
				logging.String("reason", reason),
			)
			return Result{}, &JobFailedError{ID: id, Status: snap.Status, Reason: reason}
		default:
			return Result{}, &UnknownStatusError{ID: id, Value: string(snap.Status)}
		}

		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			return Result{}, fmt.Errorf("%w: job %s still %s after %d polls: %w",
				ErrPoll, id, snap.Status, attempt, services.ErrTimeout)
		}
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
