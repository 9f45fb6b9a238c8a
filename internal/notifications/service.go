package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carprobe/internal/config"
)

const userAgent = "carprobe/0.1.0"

// Event names a notification-worthy workflow milestone.
type Event string

const (
	EventVehicleEnriched Event = "vehicle_enriched"
	EventStageFailed     Event = "stage_failed"
	EventTest            Event = "test"
)

// Payload carries event fields. Missing keys render as blanks.
type Payload map[string]string

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	field := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventVehicleEnriched:
		label := strings.TrimSpace(field("registration") + " " + field("vehicle"))
		if label == "" {
			label = "vehicle " + field("vehicleID")
		}
		body := "Purchase summary ready: " + label
		if summary := field("summary"); summary != "" {
			body += "\n" + summary
		}
		return message{
			title: "carprobe - Vehicle Enriched",
			body:  body,
			tags:  []string{"carprobe", "enrich", "completed"},
		}, true
	case EventStageFailed:
		kind := field("kind")
		if kind == "" {
			kind = "unknown"
		}
		body := fmt.Sprintf("Stage %s failed for vehicle %s (%s)", field("stage"), field("vehicleID"), kind)
		if detail := field("error"); detail != "" {
			body += ": " + detail
		}
		return message{
			title:    "carprobe - Stage Failed",
			body:     body,
			tags:     []string{"carprobe", "error", field("stage")},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "carprobe - Test",
			body:     "Notification system test",
			tags:     []string{"carprobe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if tags := compact(msg.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func compact(values []string) []string {
	out := values[:0:0]
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
