package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"toolbox/internal/config"
)

func clearJobEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REPLICATE_API_TOKEN", "")
	t.Setenv("RUNPOD_API_KEY", "")
	t.Setenv("RUNPOD_ENDPOINT", "")
	os.Unsetenv("REPLICATE_API_TOKEN")
	os.Unsetenv("RUNPOD_API_KEY")
	os.Unsetenv("RUNPOD_ENDPOINT")
	t.Setenv("FAL_KEY", "")
	os.Unsetenv("FAL_KEY")
	t.Setenv("TOOLBOX_NTFY_TOPIC", "")
	os.Unsetenv("TOOLBOX_NTFY_TOPIC")
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearJobEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".toolbox", "settings.json"); cfg.Paths.SettingsFile != want {
		t.Fatalf("unexpected settings file: got %q want %q", cfg.Paths.SettingsFile, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "toolbox"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.SocketPath() != filepath.Join(cfg.Paths.StateDir, "toolbox.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
	if cfg.Convert.SourceExt != "webp" || cfg.Convert.TargetFormat != "png" {
		t.Fatalf("unexpected convert defaults: %+v", cfg.Convert)
	}
	if cfg.PollInterval() != time.Second {
		t.Fatalf("expected 1s poll interval, got %s", cfg.PollInterval())
	}
	if cfg.Jobs.MaxAttempts != 0 {
		t.Fatalf("expected unbounded polling by default, got %d", cfg.Jobs.MaxAttempts)
	}
	if cfg.Jobs.ReplicateAPIToken != "" {
		t.Fatalf("expected no replicate token, got %q", cfg.Jobs.ReplicateAPIToken)
	}
	if cfg.Jobs.FALQueueURL != "https://queue.fal.run" || cfg.Jobs.FALKey != "" {
		t.Fatalf("unexpected fal defaults: %q %q", cfg.Jobs.FALQueueURL, cfg.Jobs.FALKey)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected binaries: %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearJobEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[paths]
state_dir = "~/state"

[convert]
source_ext = ".WEBP"
target_format = "AVIF"
avif_quality = 50

[jobs]
replicate_base_url = "http://localhost:9999/v1/"
poll_interval_millis = 250
max_attempts = 12

[notifications]
ntfy_topic = " https://ntfy.example/toolbox "
kinds = [" Convert_All ", ""]

[logging]
format = "JSON"
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Convert.SourceExt != "webp" {
		t.Fatalf("expected normalized source ext, got %q", cfg.Convert.SourceExt)
	}
	if cfg.Convert.TargetFormat != "avif" || cfg.Convert.AVIFQuality != 50 {
		t.Fatalf("unexpected convert section: %+v", cfg.Convert)
	}
	if cfg.Jobs.ReplicateBaseURL != "http://localhost:9999/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Jobs.ReplicateBaseURL)
	}
	if cfg.PollInterval() != 250*time.Millisecond || cfg.Jobs.MaxAttempts != 12 {
		t.Fatalf("unexpected jobs section: %+v", cfg.Jobs)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/toolbox" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
	if len(cfg.Notifications.Kinds) != 1 || cfg.Notifications.Kinds[0] != "convert_all" {
		t.Fatalf("unexpected notification kinds: %v", cfg.Notifications.Kinds)
	}
	if cfg.Notifications.RequestTimeoutSeconds != 10 {
		t.Fatalf("expected default ntfy timeout, got %d", cfg.Notifications.RequestTimeoutSeconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging section: %+v", cfg.Logging)
	}
}

func TestEnvVarsFillMissingJobCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REPLICATE_API_TOKEN", "r8-env")
	t.Setenv("RUNPOD_API_KEY", "rp-env")
	t.Setenv("RUNPOD_ENDPOINT", "https://api.runpod.ai/v2/abc/")
	t.Setenv("FAL_KEY", "fal-env")

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[jobs]
replicate_api_token = "r8-file"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Jobs.ReplicateAPIToken != "r8-file" {
		t.Errorf("expected file token to win, got %q", cfg.Jobs.ReplicateAPIToken)
	}
	if cfg.Jobs.RunPodAPIKey != "rp-env" {
		t.Errorf("expected RunPod key from env, got %q", cfg.Jobs.RunPodAPIKey)
	}
	if cfg.Jobs.RunPodEndpoint != "https://api.runpod.ai/v2/abc" {
		t.Errorf("expected RunPod endpoint from env, got %q", cfg.Jobs.RunPodEndpoint)
	}
	if cfg.Jobs.FALKey != "fal-env" {
		t.Errorf("expected FAL key from env, got %q", cfg.Jobs.FALKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[convert]") {
		t.Fatalf("sample config missing convert section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "toolbox") {
		t.Fatalf("expected state dir to contain toolbox, got %q", cfg.Paths.StateDir)
	}
	if cfg.Convert.TargetFormat != "png" {
		t.Fatalf("unexpected sample target format %q", cfg.Convert.TargetFormat)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SettingsFile = filepath.Join(base, "home", ".toolbox", "settings.json")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.SettingsFile)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"target format":  func(c *config.Config) { c.Convert.TargetFormat = "gif" },
		"same as source": func(c *config.Config) { c.Convert.TargetFormat = "png"; c.Convert.SourceExt = "png" },
		"empty source":   func(c *config.Config) { c.Convert.SourceExt = "" },
		"quality":        func(c *config.Config) { c.Convert.AVIFQuality = 101 },
		"speed":          func(c *config.Config) { c.Convert.AVIFSpeed = -1 },
		"attempts":       func(c *config.Config) { c.Jobs.MaxAttempts = -3 },
		"base url":       func(c *config.Config) { c.Jobs.ReplicateBaseURL = "ftp://example" },
		"fal queue url":  func(c *config.Config) { c.Jobs.FALQueueURL = "queue.fal.run" },
		"api bind":       func(c *config.Config) { c.API.Bind = "localhost" },
		"ntfy topic":     func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" },
		"log format":     func(c *config.Config) { c.Logging.Format = "xml" },
		"log level":      func(c *config.Config) { c.Logging.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
