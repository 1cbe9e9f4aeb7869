package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	SettingsFile string `toml:"settings_file"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Convert contains defaults for the image batch converter.
type Convert struct {
	SourceExt    string `toml:"source_ext"`
	TargetFormat string `toml:"target_format"`
	AVIFQuality  int    `toml:"avif_quality"`
	AVIFSpeed    int    `toml:"avif_speed"`
}

// Jobs contains configuration for the remote inference job clients.
type Jobs struct {
	ReplicateBaseURL      string `toml:"replicate_base_url"`
	ReplicateAPIToken     string `toml:"replicate_api_token"`
	RunPodAPIKey          string `toml:"runpod_api_key"`
	RunPodEndpoint        string `toml:"runpod_endpoint"`
	FALQueueURL           string `toml:"fal_queue_url"`
	FALKey                string `toml:"fal_key"`
	PollIntervalMillis    int    `toml:"poll_interval_millis"`
	MaxAttempts           int    `toml:"max_attempts"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// FFmpeg contains configuration for the external encoder.
type FFmpeg struct {
	Binary      string `toml:"binary"`
	ProbeBinary string `toml:"probe_binary"`
	ProbeInputs bool   `toml:"probe_inputs"`
}

// API contains configuration for the daemon's read-only HTTP status server.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications contains configuration for ntfy task notifications.
type Notifications struct {
	NtfyTopic             string   `toml:"ntfy_topic"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	Kinds                 []string `toml:"kinds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	ToFile bool   `toml:"to_file"`
}

// Config encapsulates all configuration values for toolbox.
//
// Configuration sections by subsystem:
//   - Paths: settings file, daemon state directory, log directory
//   - Convert: source extension and target image format
//   - Jobs: Replicate/RunPod/FAL endpoints, credentials fallback, poll tuning
//   - FFmpeg: encoder and probe binaries
//   - API: optional HTTP status server bind address and bearer token
//   - Notifications: ntfy topic and which task kinds publish
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Convert       Convert       `toml:"convert"`
	Jobs          Jobs          `toml:"jobs"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("toolbox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories plus the parent of
// the settings file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Paths.SettingsFile != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.SettingsFile))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon JSON-RPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "toolbox.sock")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "toolboxd.lock")
}

// PIDPath returns the file the daemon writes its process id to.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "toolboxd.pid")
}

// TasksDBPath returns the task history database location.
func (c *Config) TasksDBPath() string {
	return filepath.Join(c.Paths.StateDir, "tasks.db")
}

// LogFilePath returns the log file used when logging.to_file is enabled.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "toolbox.log")
}

// PollInterval returns the fixed delay between job status checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalMillis) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout for job clients.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Jobs.RequestTimeoutSeconds) * time.Second
}

// FFmpegBinary returns the encoder executable name.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		return defaultFFmpegBinary
	}
	return c.FFmpeg.Binary
}

// FFprobeBinary returns the ffprobe executable name used for input probing.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.FFmpeg.ProbeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.FFmpeg.ProbeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
