package api

import (
	"context"

	"toolbox/internal/logging"
	"toolbox/internal/preflight"
)

// Status reports dependency availability, path checks, configured keys, and
// task history counts.
func (s *Service) Status(ctx context.Context, _ StatusRequest) (StatusResponse, error) {
	resp := StatusResponse{
		ConfigPath:     s.configPath,
		SettingsPath:   s.settings.Path,
		Dependencies:   preflight.CheckSystemDeps(s.cfg),
		Checks:         preflight.RunAll(ctx, s.cfg),
		ConfiguredKeys: []string{},
	}
	if s.tasks != nil {
		resp.TasksDBPath = s.tasks.Path()
		health, err := s.taskView.Health(ctx)
		if err != nil {
			return StatusResponse{}, err
		}
		resp.Tasks = health
	}
	stored, err := s.settings.Load()
	if err != nil {
		s.logger.Debug("settings unreadable for status", logging.Error(err))
	} else {
		resp.ConfiguredKeys = stored.APIKeys.Configured()
	}
	return resp, nil
}
