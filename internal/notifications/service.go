package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"toolbox/internal/config"
)

const userAgent = "toolbox/0.1"

// Service defines the notification surface used by the operation layer.
type Service interface {
	// Enabled reports whether kind should produce notifications.
	Enabled(kind string) bool
	NotifyTaskCompleted(ctx context.Context, kind, target, summary string, duration time.Duration) error
	NotifyTaskFailed(ctx context.Context, kind, target string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	kinds := make(map[string]struct{}, len(cfg.Notifications.Kinds))
	for _, kind := range cfg.Notifications.Kinds {
		kinds[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		kinds:    kinds,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	kinds    map[string]struct{}
}

func (n *ntfyService) Enabled(kind string) bool {
	if len(n.kinds) == 0 {
		return true
	}
	_, ok := n.kinds[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}

func (n *ntfyService) NotifyTaskCompleted(ctx context.Context, kind, target, summary string, duration time.Duration) error {
	label := kindLabel(kind)
	message := fmt.Sprintf("✅ %s finished in %s", label, formatDuration(duration))
	if target = strings.TrimSpace(target); target != "" {
		message += "\nTarget: " + target
	}
	if summary = strings.TrimSpace(summary); summary != "" {
		message += "\n" + summary
	}
	data := payload{
		title:   "Toolbox - " + label + " Complete",
		message: message,
		tags:    []string{"toolbox", kind, "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, kind, target string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ ")
	builder.WriteString(kindLabel(kind))
	builder.WriteString(" failed")
	if target = strings.TrimSpace(target); target != "" {
		builder.WriteString(" for ")
		builder.WriteString(target)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Toolbox - Error",
		message:  builder.String(),
		tags:     []string{"toolbox", kind, "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Toolbox - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"toolbox", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// kindLabel turns "run_transcode" into "Run transcode".
func kindLabel(kind string) string {
	kind = strings.TrimSpace(strings.ReplaceAll(kind, "_", " "))
	if kind == "" {
		return "Task"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Enabled(string) bool { return false }
func (noopService) NotifyTaskCompleted(context.Context, string, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyTaskFailed(context.Context, string, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
