package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeConvert()
	c.normalizeJobs()
	c.normalizeFFmpeg()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.SettingsFile) == "" {
		c.Paths.SettingsFile = defaultSettingsFile
	}
	if c.Paths.SettingsFile, err = expandPath(c.Paths.SettingsFile); err != nil {
		return fmt.Errorf("paths.settings_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeConvert() {
	ext := strings.TrimSpace(c.Convert.SourceExt)
	ext = strings.TrimPrefix(ext, ".")
	c.Convert.SourceExt = strings.ToLower(ext)
	c.Convert.TargetFormat = strings.ToLower(strings.TrimSpace(c.Convert.TargetFormat))
	if c.Convert.TargetFormat == "" {
		c.Convert.TargetFormat = defaultTargetFormat
	}
}

func (c *Config) normalizeJobs() {
	c.Jobs.ReplicateBaseURL = strings.TrimRight(strings.TrimSpace(c.Jobs.ReplicateBaseURL), "/")
	if c.Jobs.ReplicateBaseURL == "" {
		c.Jobs.ReplicateBaseURL = defaultReplicateBaseURL
	}
	if c.Jobs.ReplicateAPIToken == "" {
		if value, ok := os.LookupEnv("REPLICATE_API_TOKEN"); ok {
			c.Jobs.ReplicateAPIToken = strings.TrimSpace(value)
		}
	}
	if c.Jobs.RunPodAPIKey == "" {
		if value, ok := os.LookupEnv("RUNPOD_API_KEY"); ok {
			c.Jobs.RunPodAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Jobs.RunPodEndpoint == "" {
		if value, ok := os.LookupEnv("RUNPOD_ENDPOINT"); ok {
			c.Jobs.RunPodEndpoint = strings.TrimSpace(value)
		}
	}
	c.Jobs.RunPodEndpoint = strings.TrimRight(strings.TrimSpace(c.Jobs.RunPodEndpoint), "/")
	c.Jobs.FALQueueURL = strings.TrimRight(strings.TrimSpace(c.Jobs.FALQueueURL), "/")
	if c.Jobs.FALQueueURL == "" {
		c.Jobs.FALQueueURL = defaultFALQueueURL
	}
	if c.Jobs.FALKey == "" {
		if value, ok := os.LookupEnv("FAL_KEY"); ok {
			c.Jobs.FALKey = strings.TrimSpace(value)
		}
	}
	if c.Jobs.PollIntervalMillis == 0 {
		c.Jobs.PollIntervalMillis = defaultPollIntervalMillis
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.ProbeBinary = strings.TrimSpace(c.FFmpeg.ProbeBinary)
	if c.FFmpeg.ProbeBinary == "" {
		c.FFmpeg.ProbeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("TOOLBOX_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("TOOLBOX_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
	kinds := c.Notifications.Kinds[:0]
	for _, kind := range c.Notifications.Kinds {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind != "" {
			kinds = append(kinds, kind)
		}
	}
	c.Notifications.Kinds = kinds
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
