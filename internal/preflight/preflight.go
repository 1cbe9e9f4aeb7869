package preflight

import (
	"context"
	"path/filepath"

	"toolbox/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Paths.SettingsFile != "" {
		results = append(results, CheckDirectoryAccess("Settings directory", filepath.Dir(cfg.Paths.SettingsFile)))
	}

	if cfg.Jobs.ReplicateAPIToken != "" {
		results = append(results, CheckReplicate(ctx, cfg.Jobs.ReplicateBaseURL, cfg.Jobs.ReplicateAPIToken))
	}

	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
