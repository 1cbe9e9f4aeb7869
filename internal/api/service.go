package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"toolbox/internal/config"
	"toolbox/internal/imageconv"
	"toolbox/internal/logging"
	"toolbox/internal/longpoll"
	"toolbox/internal/media/ffprobe"
	"toolbox/internal/notifications"
	"toolbox/internal/services"
	"toolbox/internal/settings"
	"toolbox/internal/tasks"
	"toolbox/internal/transcode"
)

// Service runs toolbox operations against one resolved configuration.
type Service struct {
	cfg        *config.Config
	configPath string
	settings   *settings.Store
	tasks      *tasks.Store
	taskView   *TaskService
	logger     *slog.Logger
	notifier   notifications.Service

	httpClient  *http.Client
	backends    map[string]longpoll.Backend
	pollOpts    []longpoll.Option
	jobObserver func(longpoll.Poll)

	transcoder *transcode.Transcoder
	launcher   transcode.Launcher
	prober     transcode.Prober

	progress func(imageconv.Progress)
}

// Option customizes the Service.
type Option func(*Service)

// WithTaskStore records every state-changing operation in store.
func WithTaskStore(store *tasks.Store) Option {
	return func(s *Service) {
		s.tasks = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier overrides the notifier built from the notifications config.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithConfigPath records the resolved config file location for status output.
func WithConfigPath(path string) Option {
	return func(s *Service) {
		s.configPath = path
	}
}

// WithHTTPClient overrides the HTTP client used by the job backends.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithBackend replaces the job backend registered under name.
func WithBackend(name string, backend longpoll.Backend) Option {
	return func(s *Service) {
		if backend == nil {
			return
		}
		if s.backends == nil {
			s.backends = make(map[string]longpoll.Backend)
		}
		s.backends[strings.ToLower(strings.TrimSpace(name))] = backend
	}
}

// WithPollOptions appends long-poll options applied after the configured ones.
func WithPollOptions(opts ...longpoll.Option) Option {
	return func(s *Service) {
		s.pollOpts = append(s.pollOpts, opts...)
	}
}

// WithJobObserver receives every job status poll.
func WithJobObserver(fn func(longpoll.Poll)) Option {
	return func(s *Service) {
		s.jobObserver = fn
	}
}

// WithLauncher injects the encoder process launcher (primarily for tests).
func WithLauncher(launcher transcode.Launcher) Option {
	return func(s *Service) {
		s.launcher = launcher
	}
}

// WithProber overrides the media prober used before encoder runs.
func WithProber(prober transcode.Prober) Option {
	return func(s *Service) {
		s.prober = prober
	}
}

// WithProgress receives per-file progress from batch conversions.
func WithProgress(fn func(imageconv.Progress)) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// New constructs a Service for cfg.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("api service requires config")
	}
	s := &Service{
		cfg:      cfg,
		settings: settings.NewStore(cfg.Paths.SettingsFile),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.NewComponentLogger(s.logger, "api")
	if s.notifier == nil {
		s.notifier = notifications.NewService(cfg)
	}
	if s.tasks != nil {
		s.taskView = NewTaskService(s.tasks)
	}

	prober := s.prober
	if prober == nil && cfg.FFmpeg.ProbeInputs {
		prober = ffprobe.NewProber(cfg.FFprobeBinary(), nil)
	}
	s.transcoder = transcode.New(cfg.FFmpegBinary(),
		transcode.WithLauncher(s.launcher),
		transcode.WithProber(prober),
		transcode.WithLogger(s.logger),
	)
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// SettingsPath returns the settings file location.
func (s *Service) SettingsPath() string {
	return s.settings.Path
}

// ConvertAll converts every matching file in a directory.
func (s *Service) ConvertAll(ctx context.Context, req ConvertAllRequest) (ConvertAllResponse, error) {
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		return ConvertAllResponse{}, fmt.Errorf("%w: directory path required", imageconv.ErrInvalidPath)
	}
	conv, err := s.converter(req.SourceExt, req.Target)
	if err != nil {
		return ConvertAllResponse{}, err
	}
	var resp ConvertAllResponse
	err = s.track(ctx, KindConvertAll, dir, func(ctx context.Context) (string, error) {
		report, err := conv.ConvertAll(ctx, dir)
		if err != nil {
			return "", err
		}
		resp.Report = report
		return fmt.Sprintf("%d converted, %d failed", report.Converted, report.Failed), nil
	})
	return resp, err
}

// ConvertOne converts a single file.
func (s *Service) ConvertOne(ctx context.Context, req ConvertOneRequest) (ConvertOneResponse, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return ConvertOneResponse{}, fmt.Errorf("%w: file path required", imageconv.ErrInvalidPath)
	}
	conv, err := s.converter(req.SourceExt, req.Target)
	if err != nil {
		return ConvertOneResponse{}, err
	}
	var resp ConvertOneResponse
	err = s.track(ctx, KindConvertOne, path, func(ctx context.Context) (string, error) {
		output, err := conv.ConvertOne(ctx, path)
		if err != nil {
			return "", err
		}
		resp.Output = output
		return output, nil
	})
	return resp, err
}

// DeleteAllMatching removes every file in a directory with the given extension.
func (s *Service) DeleteAllMatching(ctx context.Context, req DeleteAllMatchingRequest) (DeleteAllMatchingResponse, error) {
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		return DeleteAllMatchingResponse{}, fmt.Errorf("%w: directory path required", imageconv.ErrInvalidPath)
	}
	ext := strings.TrimPrefix(strings.TrimSpace(req.Ext), ".")
	if ext == "" {
		ext = s.cfg.Convert.SourceExt
	}
	conv := imageconv.New(imageconv.WithLogger(s.logger))
	var resp DeleteAllMatchingResponse
	err := s.track(ctx, KindDeleteMatches, dir, func(ctx context.Context) (string, error) {
		deleted, err := conv.DeleteAllMatching(ctx, dir, ext)
		resp.Deleted = deleted
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d .%s files deleted", deleted, ext), nil
	})
	return resp, err
}

// SaveSettings persists settings to the configured file.
func (s *Service) SaveSettings(ctx context.Context, req SaveSettingsRequest) (SaveSettingsResponse, error) {
	err := s.track(ctx, KindSaveSettings, s.settings.Path, func(context.Context) (string, error) {
		if err := s.settings.Save(req.Settings); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d keys saved", len(req.Settings.APIKeys.Configured())), nil
	})
	return SaveSettingsResponse{Path: s.settings.Path}, err
}

// LoadSettings reads settings from the configured file. A missing file yields
// empty settings.
func (s *Service) LoadSettings(ctx context.Context, _ LoadSettingsRequest) (LoadSettingsResponse, error) {
	resp := LoadSettingsResponse{Path: s.settings.Path}
	err := s.track(ctx, KindLoadSettings, s.settings.Path, func(context.Context) (string, error) {
		loaded, err := s.settings.Load()
		if err != nil {
			return "", err
		}
		resp.Settings = loaded
		return fmt.Sprintf("%d keys loaded", len(loaded.APIKeys.Configured())), nil
	})
	return resp, err
}

// ImportKeys merges API keys from a keys file into the settings file.
func (s *Service) ImportKeys(ctx context.Context, req KeysFileRequest) (KeysFileResponse, error) {
	var resp KeysFileResponse
	err := s.track(ctx, KindImportKeys, req.Path, func(context.Context) (string, error) {
		count, err := s.settings.ImportKeys(req.Path)
		if err != nil {
			return "", err
		}
		resp.Count = count
		return fmt.Sprintf("%d keys imported", count), nil
	})
	return resp, err
}

// ExportKeys writes the configured API keys to a keys file.
func (s *Service) ExportKeys(ctx context.Context, req KeysFileRequest) (KeysFileResponse, error) {
	var resp KeysFileResponse
	err := s.track(ctx, KindExportKeys, req.Path, func(context.Context) (string, error) {
		loaded, err := s.settings.Load()
		if err != nil {
			return "", err
		}
		if err := s.settings.ExportKeys(req.Path); err != nil {
			return "", err
		}
		resp.Count = len(loaded.APIKeys.Configured())
		return fmt.Sprintf("%d keys exported", resp.Count), nil
	})
	return resp, err
}

// RunTranscode validates and runs one encoder operation.
func (s *Service) RunTranscode(ctx context.Context, req RunTranscodeRequest) (RunTranscodeResponse, error) {
	var resp RunTranscodeResponse
	target := strings.TrimSpace(string(req.Op)) + " " + strings.TrimSpace(req.Input)
	err := s.track(ctx, KindRunTranscode, strings.TrimSpace(target), func(ctx context.Context) (string, error) {
		outcome, err := s.transcoder.Run(ctx, req)
		if err != nil {
			return "", err
		}
		resp = RunTranscodeResponse{Output: outcome.Output, Log: outcome.Log}
		return outcome.Output, nil
	})
	return resp, err
}

// CheckPathIsDirectory reports whether a path exists and is a directory.
func (s *Service) CheckPathIsDirectory(_ context.Context, req CheckPathRequest) (CheckPathResponse, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return CheckPathResponse{}, services.Wrap(services.ErrValidation, "api", "check path", "path required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CheckPathResponse{}, nil
		}
		return CheckPathResponse{}, fmt.Errorf("%w: %s: %w", imageconv.ErrInvalidPath, path, err)
	}
	return CheckPathResponse{Exists: true, IsDirectory: info.IsDir()}, nil
}

// Tasks lists recorded task history, newest first.
func (s *Service) Tasks(ctx context.Context, req TasksRequest) (TasksResponse, error) {
	if s.taskView == nil {
		return TasksResponse{Tasks: []TaskItem{}}, nil
	}
	items, err := s.taskView.List(ctx, req)
	if err != nil {
		return TasksResponse{}, err
	}
	return TasksResponse{Tasks: items}, nil
}

func (s *Service) converter(sourceExt, target string) (*imageconv.Converter, error) {
	if strings.TrimSpace(sourceExt) == "" {
		sourceExt = s.cfg.Convert.SourceExt
	}
	if strings.TrimSpace(target) == "" {
		target = s.cfg.Convert.TargetFormat
	}
	format, err := imageconv.ParseFormat(target)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "convert", "", err)
	}
	return imageconv.New(
		imageconv.WithSourceExt(sourceExt),
		imageconv.WithTarget(format),
		imageconv.WithAVIF(s.cfg.Convert.AVIFQuality, s.cfg.Convert.AVIFSpeed),
		imageconv.WithProgress(s.progress),
		imageconv.WithLogger(s.logger),
	), nil
}

// track runs fn as one recorded task. History write failures are logged and
// never fail the operation itself.
func (s *Service) track(ctx context.Context, kind, target string, fn func(context.Context) (string, error)) error {
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithOperation(ctx, kind)

	var taskID string
	if s.tasks != nil {
		task, err := s.tasks.Create(ctx, kind, target)
		if err != nil {
			s.historyWarning(ctx, "task create failed", err)
		} else {
			taskID = task.ID
			ctx = services.WithTaskID(ctx, taskID)
			if err := s.tasks.Start(ctx, taskID); err != nil {
				s.historyWarning(ctx, "task start failed", err)
			}
		}
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("operation started", logging.String("target", target))

	started := time.Now()
	summary, err := fn(ctx)
	recordCtx := context.WithoutCancel(ctx)
	if err != nil {
		errKind := services.Kind(err)
		logger.Warn("operation failed",
			logging.String("target", target),
			logging.String("error_kind", errKind),
			logging.Error(err),
			logging.String(logging.FieldEventType, "operation_failed"),
			logging.String(logging.FieldErrorHint, hintFor(errKind)),
		)
		if taskID != "" {
			if recErr := s.tasks.Fail(recordCtx, taskID, errKind, err.Error()); recErr != nil {
				s.historyWarning(ctx, "task fail record failed", recErr)
			}
		}
		if s.notifier.Enabled(kind) {
			if notifyErr := s.notifier.NotifyTaskFailed(recordCtx, kind, target, err); notifyErr != nil {
				s.notifyWarning(ctx, notifyErr)
			}
		}
		return err
	}

	logger.Info("operation completed",
		logging.String("target", target),
		logging.String("summary", summary),
		logging.Duration("elapsed", time.Since(started)),
	)
	if taskID != "" {
		if recErr := s.tasks.Complete(recordCtx, taskID, summary); recErr != nil {
			s.historyWarning(ctx, "task complete record failed", recErr)
		}
	}
	if s.notifier.Enabled(kind) {
		if notifyErr := s.notifier.NotifyTaskCompleted(recordCtx, kind, target, summary, time.Since(started)); notifyErr != nil {
			s.notifyWarning(ctx, notifyErr)
		}
	}
	return nil
}

func (s *Service) notifyWarning(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "task notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
		logging.String(logging.FieldImpact, "task outcome was not pushed to ntfy"),
	)
}

func (s *Service) historyWarning(ctx context.Context, msg string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), msg, "task_history_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the task database under the state directory"),
		logging.String(logging.FieldImpact, "operation result is not recorded in task history"),
	)
}

func hintFor(kind string) string {
	switch kind {
	case services.KindInvalidPath, services.KindNotAFile, services.KindWrongExtension:
		return "check the selected path and extension"
	case services.KindDecode:
		return "the source file may be corrupt or not the expected format"
	case services.KindSubmission, services.KindPoll:
		return "check network access and the API credential"
	case services.KindJobFailed:
		return "inspect the job on the provider dashboard"
	case services.KindInvalidParams:
		return "fix the request parameters and retry"
	case services.KindProcessLaunch:
		return "install ffmpeg or set ffmpeg.binary"
	case services.KindProcessExit:
		return "inspect the encoder output"
	case services.KindConfiguration:
		return "add the missing key with toolbox settings set"
	default:
		return "check logs for details"
	}
}
