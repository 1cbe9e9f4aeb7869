package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConvert() error {
	if c.Convert.SourceExt == "" {
		return errors.New("convert.source_ext must be set")
	}
	if strings.ContainsAny(c.Convert.SourceExt, `/\`) {
		return fmt.Errorf("convert.source_ext %q must be a bare extension", c.Convert.SourceExt)
	}
	switch c.Convert.TargetFormat {
	case "png", "avif":
	default:
		return fmt.Errorf("convert.target_format: unsupported value %q (expected png or avif)", c.Convert.TargetFormat)
	}
	if c.Convert.TargetFormat == c.Convert.SourceExt {
		return errors.New("convert.target_format must differ from convert.source_ext")
	}
	if c.Convert.AVIFQuality < 0 || c.Convert.AVIFQuality > 100 {
		return errors.New("convert.avif_quality must be between 0 and 100")
	}
	if c.Convert.AVIFSpeed < 0 || c.Convert.AVIFSpeed > 10 {
		return errors.New("convert.avif_speed must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.PollIntervalMillis < 0 {
		return errors.New("jobs.poll_interval_millis must be positive")
	}
	if c.Jobs.MaxAttempts < 0 {
		return errors.New("jobs.max_attempts must be zero (unbounded) or positive")
	}
	if c.Jobs.RequestTimeoutSeconds < 0 {
		return errors.New("jobs.request_timeout_seconds must be zero or positive")
	}
	if !strings.HasPrefix(c.Jobs.ReplicateBaseURL, "http://") && !strings.HasPrefix(c.Jobs.ReplicateBaseURL, "https://") {
		return fmt.Errorf("jobs.replicate_base_url %q must be an http(s) URL", c.Jobs.ReplicateBaseURL)
	}
	if !strings.HasPrefix(c.Jobs.FALQueueURL, "http://") && !strings.HasPrefix(c.Jobs.FALQueueURL, "https://") {
		return fmt.Errorf("jobs.fal_queue_url %q must be an http(s) URL", c.Jobs.FALQueueURL)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
