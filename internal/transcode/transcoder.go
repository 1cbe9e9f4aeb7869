package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"toolbox/internal/logging"
	"toolbox/internal/media/ffprobe"
)

// Launcher runs an external binary to completion and returns its exit code
// and combined output. err is reserved for failures to start the process.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (exitCode int, output string, err error)
}

// Prober inspects media inputs before launch.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Outcome reports a finished run.
type Outcome struct {
	Output string `json:"output"`
	Log    string `json:"log"`
}

// Option configures the Transcoder.
type Option func(*Transcoder)

// WithLauncher injects a custom launcher (primarily for tests).
func WithLauncher(l Launcher) Option {
	return func(t *Transcoder) {
		if l != nil {
			t.launcher = l
		}
	}
}

// WithProber enables stream checks on inputs.
func WithProber(p Prober) Option {
	return func(t *Transcoder) {
		t.prober = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transcoder) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Transcoder runs validated requests through ffmpeg.
type Transcoder struct {
	binary   string
	launcher Launcher
	prober   Prober
	logger   *slog.Logger
}

// New constructs a Transcoder for the ffmpeg binary ("ffmpeg" when empty).
func New(binary string, opts ...Option) *Transcoder {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	t := &Transcoder{
		binary:   binary,
		launcher: ProcessLauncher{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.logger = logging.NewComponentLogger(t.logger, "transcode")
	return t
}

// Run validates req, optionally probes the inputs, and launches ffmpeg.
func (t *Transcoder) Run(ctx context.Context, req Request) (Outcome, error) {
	plan, err := Validate(req)
	if err != nil {
		return Outcome{}, err
	}
	logger := logging.WithContext(ctx, t.logger)

	if t.prober != nil {
		if err := t.checkStreams(ctx, &plan, req); err != nil {
			return Outcome{}, err
		}
	}

	logger.Info("encoder starting",
		logging.String("op", string(plan.Op)),
		logging.String("input", plan.Input),
		logging.String("output", plan.Output),
	)
	logger.Debug("encoder arguments", logging.String("args", strings.Join(plan.Args, " ")))

	code, output, err := t.launcher.Launch(ctx, t.binary, plan.Args)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %w", ErrProcessLaunch, t.binary, err)
	}
	if code != 0 {
		exitErr := &ProcessExitError{Binary: t.binary, Code: code, Output: output}
		logger.Warn("encoder failed",
			logging.String("op", string(plan.Op)),
			logging.Int("exit_code", code),
			logging.String(logging.FieldEventType, "encoder_exit"),
			logging.String(logging.FieldErrorHint, "inspect the encoder output for the failing filter or codec"),
		)
		return Outcome{}, exitErr
	}

	logger.Info("encoder finished", logging.String("op", string(plan.Op)), logging.String("output", plan.Output))
	return Outcome{Output: plan.Output, Log: output}, nil
}

func (t *Transcoder) checkStreams(ctx context.Context, plan *Plan, req Request) error {
	info, err := t.prober.Probe(ctx, plan.Input)
	if err != nil {
		logging.WarnWithContext(t.logger, "input probe failed; launching without stream checks", "probe_failed",
			logging.String("input", plan.Input),
			logging.Error(err),
		)
		return nil
	}
	switch plan.Op {
	case OpExtractAudio:
		if info.AudioStreamCount() == 0 {
			return invalid("input %q has no audio stream", plan.Input)
		}
	case OpReverse:
		if info.VideoStreamCount() == 0 {
			return invalid("input %q has no video stream", plan.Input)
		}
		if info.AudioStreamCount() == 0 {
			plan.Args = buildArgs(*plan, req, false)
		}
	default:
		if info.VideoStreamCount() == 0 {
			return invalid("input %q has no video stream", plan.Input)
		}
	}
	if plan.Op == OpOverlayAudio {
		audio, err := t.prober.Probe(ctx, plan.Audio)
		if err == nil && audio.AudioStreamCount() == 0 {
			return invalid("audio %q has no audio stream", plan.Audio)
		}
	}
	return nil
}

// ProcessLauncher runs binaries with os/exec.
type ProcessLauncher struct{}

// Launch implements Launcher.
func (ProcessLauncher) Launch(ctx context.Context, binary string, args []string) (int, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return 0, string(output), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, string(output), ctxErr
		}
		return exitErr.ExitCode(), string(output), nil
	}
	return -1, string(output), err
}
