package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubber/internal/config"
)

const userAgent = "Dubber/0.1.0"

// Service defines the push notification surface used by the pipeline.
type Service interface {
	NotifyJobStarted(ctx context.Context, title string) error
	NotifyJobCompleted(ctx context.Context, title, outputFile string) error
	NotifyJobFailed(ctx context.Context, title, reason string) error
	NotifyJobCancelled(ctx context.Context, title string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
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

func (n *ntfyService) NotifyJobStarted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Dubber - Job Started",
		message: fmt.Sprintf("Started dubbing: %s", title),
		tags:    []string{"dubber", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, outputFile string) error {
	title = strings.TrimSpace(title)
	outputFile = strings.TrimSpace(outputFile)
	message := fmt.Sprintf("Dub complete: %s", title)
	if outputFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, outputFile)
	}
	data := payload{
		title:    "Dubber - Complete",
		message:  message,
		tags:     []string{"dubber", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "unknown job"
	}
	var builder strings.Builder
	builder.WriteString("Dubbing failed: ")
	builder.WriteString(title)
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString("\n")
		builder.WriteString(reason)
	}
	data := payload{
		title:    "Dubber - Failed",
		message:  builder.String(),
		tags:     []string{"dubber", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCancelled(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Dubber - Cancelled",
		message: fmt.Sprintf("Dubbing cancelled: %s", title),
		tags:    []string{"dubber", "job", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Dubber - Test",
		message:  "Notification system test",
		tags:     []string{"dubber", "test"},
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

func (noopService) NotifyJobStarted(context.Context, string) error           { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyJobCancelled(context.Context, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
