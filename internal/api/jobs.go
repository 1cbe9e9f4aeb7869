package api

import (
	"context"
	"fmt"
	"strings"

	"toolbox/internal/logging"
	"toolbox/internal/longpoll"
	"toolbox/internal/services"
	"toolbox/internal/services/fal"
	"toolbox/internal/services/replicate"
	"toolbox/internal/services/runpod"
	"toolbox/internal/settings"
)

// RunJob submits a remote inference job and polls it to a terminal state.
// The credential is the one in the request, else the settings file, else the
// config.
func (s *Service) RunJob(ctx context.Context, req RunJobRequest) (RunJobResponse, error) {
	name := strings.ToLower(strings.TrimSpace(req.Backend))
	if name == "" {
		name = BackendReplicate
	}
	backend, err := s.backend(name)
	if err != nil {
		return RunJobResponse{}, err
	}

	var resp RunJobResponse
	err = s.track(ctx, KindRunJob, strings.TrimSpace(name+" "+req.Target), func(ctx context.Context) (string, error) {
		jobReq, err := s.jobRequest(name, req)
		if err != nil {
			return "", err
		}
		opts := []longpoll.Option{
			longpoll.WithInterval(s.cfg.PollInterval()),
			longpoll.WithMaxAttempts(s.cfg.Jobs.MaxAttempts),
			longpoll.WithLogger(s.logger),
			longpoll.WithObserver(s.jobObserver),
		}
		opts = append(opts, s.pollOpts...)
		result, err := longpoll.Run(ctx, backend, jobReq, opts...)
		if err != nil {
			return "", err
		}
		resp = RunJobResponse{ID: result.ID, Output: result.Output, Attempts: result.Attempts}
		return fmt.Sprintf("job %s succeeded after %d polls", result.ID, result.Attempts), nil
	})
	return resp, err
}

func (s *Service) backend(name string) (longpoll.Backend, error) {
	if backend, ok := s.backends[name]; ok {
		return backend, nil
	}
	switch name {
	case BackendReplicate:
		return replicate.New(s.cfg.Jobs.ReplicateBaseURL,
			replicate.WithTimeout(s.cfg.RequestTimeout()),
			replicate.WithHTTPClient(s.httpClient),
		), nil
	case BackendRunPod:
		return runpod.New(
			runpod.WithTimeout(s.cfg.RequestTimeout()),
			runpod.WithHTTPClient(s.httpClient),
		), nil
	case BackendFAL:
		return fal.New(
			fal.WithQueueURL(s.cfg.Jobs.FALQueueURL),
			fal.WithTimeout(s.cfg.RequestTimeout()),
			fal.WithHTTPClient(s.httpClient),
		), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "api", "run job",
			fmt.Sprintf("unknown backend %q (expected %s, %s or %s)", name, BackendReplicate, BackendRunPod, BackendFAL), nil)
	}
}

func (s *Service) jobRequest(name string, req RunJobRequest) (longpoll.Request, error) {
	explicit := strings.TrimSpace(req.Credential)
	stored, err := s.settings.Load()
	if err != nil {
		s.logger.Warn("settings unreadable; using config credentials",
			logging.Error(err),
			logging.String(logging.FieldEventType, "settings_load_failed"),
			logging.String(logging.FieldErrorHint, "fix or remove the settings file"),
		)
		stored = settings.Settings{}
	}
	keys := stored.APIKeys

	target := strings.TrimSpace(req.Target)
	var credential string
	switch name {
	case BackendReplicate:
		credential = firstNonEmpty(explicit, keys.Replicate, s.cfg.Jobs.ReplicateAPIToken)
		if target == "" {
			return longpoll.Request{}, services.Wrap(services.ErrValidation, "api", "run job", "replicate model version required", nil)
		}
	case BackendRunPod:
		credential = firstNonEmpty(explicit, keys.RunPod, s.cfg.Jobs.RunPodAPIKey)
		target = firstNonEmpty(target, keys.RunPodEndpoint, s.cfg.Jobs.RunPodEndpoint)
		if target == "" {
			return longpoll.Request{}, services.Wrap(services.ErrConfiguration, "api", "run job", "runpod endpoint not configured", nil)
		}
	case BackendFAL:
		credential = firstNonEmpty(explicit, keys.FAL, s.cfg.Jobs.FALKey)
		if target == "" {
			return longpoll.Request{}, services.Wrap(services.ErrValidation, "api", "run job", "fal model id required", nil)
		}
	}
	if credential == "" {
		return longpoll.Request{}, services.Wrap(services.ErrConfiguration, "api", "run job",
			fmt.Sprintf("no %s API key in settings or config", name), nil)
	}
	return longpoll.Request{Target: target, Input: req.Input, Credential: credential}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
