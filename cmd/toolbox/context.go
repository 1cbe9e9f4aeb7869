package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"toolbox/internal/api"
	"toolbox/internal/config"
	"toolbox/internal/imageconv"
	"toolbox/internal/ipc"
	"toolbox/internal/logging"
	"toolbox/internal/tasks"
)

type commandContext struct {
	configFlag   *string
	jsonFlag     *bool
	localFlag    *bool
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, localFlag *bool, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		jsonFlag:     jsonFlag,
		localFlag:    localFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) localOnly() bool {
	return c.localFlag != nil && *c.localFlag
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	copyCfg := *cfg
	copyCfg.Logging.Level = c.logLevel(cfg)
	return logging.NewFromConfig(&copyCfg)
}

// operations is the slice of api.Service the CLI drives. *api.Service
// satisfies it directly; remoteOperations adapts the daemon client.
type operations interface {
	ConvertAll(ctx context.Context, req api.ConvertAllRequest) (api.ConvertAllResponse, error)
	ConvertOne(ctx context.Context, req api.ConvertOneRequest) (api.ConvertOneResponse, error)
	DeleteAllMatching(ctx context.Context, req api.DeleteAllMatchingRequest) (api.DeleteAllMatchingResponse, error)
	SaveSettings(ctx context.Context, req api.SaveSettingsRequest) (api.SaveSettingsResponse, error)
	LoadSettings(ctx context.Context, req api.LoadSettingsRequest) (api.LoadSettingsResponse, error)
	ImportKeys(ctx context.Context, req api.KeysFileRequest) (api.KeysFileResponse, error)
	ExportKeys(ctx context.Context, req api.KeysFileRequest) (api.KeysFileResponse, error)
	RunJob(ctx context.Context, req api.RunJobRequest) (api.RunJobResponse, error)
	RunTranscode(ctx context.Context, req api.RunTranscodeRequest) (api.RunTranscodeResponse, error)
	CheckPathIsDirectory(ctx context.Context, req api.CheckPathRequest) (api.CheckPathResponse, error)
	Tasks(ctx context.Context, req api.TasksRequest) (api.TasksResponse, error)
}

// withOperations runs fn against the daemon when it answers, otherwise
// against an in-process service backed by the local task store.
func (c *commandContext) withOperations(cmd *cobra.Command, fn func(operations) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !c.localOnly() {
		if client, dialErr := ipc.Dial(cfg.SocketPath()); dialErr == nil {
			defer client.Close()
			return fn(remoteOperations{client: client})
		}
	}

	svc, closeFn, err := c.localService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func (c *commandContext) localService(cmd *cobra.Command) (*api.Service, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := tasks.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open task history: %w", err)
	}
	opts := []api.Option{
		api.WithTaskStore(store),
		api.WithLogger(logger),
		api.WithConfigPath(c.configPath),
	}
	if !c.jsonOutput() {
		opts = append(opts, api.WithProgress(progressPrinter(cmd)))
	}
	svc, err := api.New(cfg, opts...)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return svc, func() { _ = store.Close() }, nil
}

func progressPrinter(cmd *cobra.Command) func(imageconv.Progress) {
	out := cmd.ErrOrStderr()
	return func(p imageconv.Progress) {
		if p.Err != nil {
			fmt.Fprintf(out, "[%d/%d] %s: %v\n", p.Done, p.Total, p.File, p.Err)
			return
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", p.Done, p.Total, p.File)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

type remoteOperations struct {
	client *ipc.Client
}

func (r remoteOperations) ConvertAll(ctx context.Context, req api.ConvertAllRequest) (api.ConvertAllResponse, error) {
	resp, err := r.client.ConvertAll(ctx, req)
	if err != nil {
		return api.ConvertAllResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) ConvertOne(ctx context.Context, req api.ConvertOneRequest) (api.ConvertOneResponse, error) {
	resp, err := r.client.ConvertOne(ctx, req)
	if err != nil {
		return api.ConvertOneResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) DeleteAllMatching(ctx context.Context, req api.DeleteAllMatchingRequest) (api.DeleteAllMatchingResponse, error) {
	resp, err := r.client.DeleteAllMatching(ctx, req)
	if err != nil {
		return api.DeleteAllMatchingResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) SaveSettings(ctx context.Context, req api.SaveSettingsRequest) (api.SaveSettingsResponse, error) {
	resp, err := r.client.SaveSettings(ctx, req)
	if err != nil {
		return api.SaveSettingsResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) LoadSettings(ctx context.Context, _ api.LoadSettingsRequest) (api.LoadSettingsResponse, error) {
	resp, err := r.client.LoadSettings(ctx)
	if err != nil {
		return api.LoadSettingsResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) ImportKeys(ctx context.Context, req api.KeysFileRequest) (api.KeysFileResponse, error) {
	resp, err := r.client.ImportKeys(ctx, req)
	if err != nil {
		return api.KeysFileResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) ExportKeys(ctx context.Context, req api.KeysFileRequest) (api.KeysFileResponse, error) {
	resp, err := r.client.ExportKeys(ctx, req)
	if err != nil {
		return api.KeysFileResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) RunJob(ctx context.Context, req api.RunJobRequest) (api.RunJobResponse, error) {
	resp, err := r.client.RunJob(ctx, req)
	if err != nil {
		return api.RunJobResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) RunTranscode(ctx context.Context, req api.RunTranscodeRequest) (api.RunTranscodeResponse, error) {
	resp, err := r.client.RunTranscode(ctx, req)
	if err != nil {
		return api.RunTranscodeResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) CheckPathIsDirectory(ctx context.Context, req api.CheckPathRequest) (api.CheckPathResponse, error) {
	resp, err := r.client.CheckPath(ctx, req)
	if err != nil {
		return api.CheckPathResponse{}, err
	}
	return *resp, nil
}

func (r remoteOperations) Tasks(ctx context.Context, req api.TasksRequest) (api.TasksResponse, error) {
	resp, err := r.client.Tasks(ctx, req)
	if err != nil {
		return api.TasksResponse{}, err
	}
	return *resp, nil
}
