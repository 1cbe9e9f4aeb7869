package config

const (
	defaultConfigPath            = "~/.config/toolbox/config.toml"
	defaultSettingsFile          = "~/.toolbox/settings.json"
	defaultStateDir              = "~/.local/share/toolbox"
	defaultLogDir                = "~/.local/share/toolbox/logs"
	defaultSourceExt             = "webp"
	defaultTargetFormat          = "png"
	defaultAVIFQuality           = 80
	defaultAVIFSpeed             = 6
	defaultReplicateBaseURL      = "https://api.replicate.com/v1"
	defaultFALQueueURL           = "https://queue.fal.run"
	defaultPollIntervalMillis    = 1000
	defaultRequestTimeoutSeconds = 60
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultNtfyTimeoutSeconds    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SettingsFile: defaultSettingsFile,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
		},
		Convert: Convert{
			SourceExt:    defaultSourceExt,
			TargetFormat: defaultTargetFormat,
			AVIFQuality:  defaultAVIFQuality,
			AVIFSpeed:    defaultAVIFSpeed,
		},
		Jobs: Jobs{
			ReplicateBaseURL:      defaultReplicateBaseURL,
			FALQueueURL:           defaultFALQueueURL,
			PollIntervalMillis:    defaultPollIntervalMillis,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		FFmpeg: FFmpeg{
			Binary:      defaultFFmpegBinary,
			ProbeBinary: defaultFFprobeBinary,
			ProbeInputs: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			Kinds:                 []string{"convert_all", "run_job", "run_transcode"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
