// Package notify implements the outbound job completion notification
// collaborator. Delivery is fire-and-forget: a failed notification is
// logged and never affects job finalization.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/events"
)

// WebhookNotifier forwards job completion events to a configured webhook
// URL. It implements events.EventHandler so it can be registered directly
// on the event emitter.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookNotifier creates a notifier posting to the given URL. An empty
// URL yields a notifier that drops events silently, so callers can wire it
// unconditionally.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With("component", "webhook_notifier"),
	}
}

// HandleEvent posts completion events to the webhook. Non-completion
// events are ignored. Errors are returned for the emitter to log, but the
// emitter's contract keeps them away from job finalization.
func (n *WebhookNotifier) HandleEvent(ctx context.Context, event *events.JobEvent) error {
	if event.Type != events.EventTypeJobCompleted {
		return nil
	}

	if n.url == "" {
		n.logger.Debug("no webhook configured, dropping completion notification",
			"event_id", event.ID)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info("delivered job completion notification",
		"event_id", event.ID,
		"status", resp.StatusCode)
	return nil
}
