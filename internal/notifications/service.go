package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daemonkit/internal/config"
)

const userAgent = "daemonkit/0.1.0"

// Service defines the notification surface exposed to daemons.
type Service interface {
	NotifyCritical(ctx context.Context, subject, body string) error
	NotifyDaemonStarted(ctx context.Context, name string, pid int) error
	NotifyDaemonStopped(ctx context.Context, name string, pid int, uptime time.Duration) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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
}

func (n *ntfyService) NotifyCritical(ctx context.Context, subject, body string) error {
	data := payload{
		title:    strings.TrimSpace(subject),
		message:  strings.TrimSpace(body),
		tags:     []string{"daemon", "critical", "rotating_light"},
		priority: "urgent",
	}
	if data.message == "" {
		data.message = "(no details)"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, name string, pid int) error {
	data := payload{
		title:    fmt.Sprintf("%s started", name),
		message:  fmt.Sprintf("%s is running with pid %d", name, pid),
		tags:     []string{"daemon", "started"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, name string, pid int, uptime time.Duration) error {
	uptime = uptime.Round(time.Second)
	if uptime < 0 {
		uptime = 0
	}
	data := payload{
		title:    fmt.Sprintf("%s stopped", name),
		message:  fmt.Sprintf("%s (pid %d) stopped after %s", name, pid, uptime),
		tags:     []string{"daemon", "stopped"},
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

type noopService struct{}

func (noopService) NotifyCritical(context.Context, string, string) error { return nil }

func (noopService) NotifyDaemonStarted(context.Context, string, int) error { return nil }

func (noopService) NotifyDaemonStopped(context.Context, string, int, time.Duration) error {
	return nil
}
