package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pharmstock/internal/types"
)

// WebhookPublisher posts newly created notifications to a configured HTTP
// receiver. The engine treats delivery as best-effort; a dead receiver never
// blocks notification creation.
type WebhookPublisher struct {
	client *BaseClient
	url    string
	logger *slog.Logger
}

// NewWebhookPublisher creates a WebhookPublisher targeting url.
func NewWebhookPublisher(url string, timeout time.Duration, userAgent string, logger *slog.Logger) *WebhookPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookPublisher{
		client: NewBaseClient(
			&http.Client{Timeout: timeout},
			"alert_webhook",
			DefaultRetryPolicy(),
			userAgent,
		),
		url:    url,
		logger: logger,
	}
}

// webhookEvent is the wire format posted to the receiver.
type webhookEvent struct {
	Event         string          `json:"event"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Notifications []webhookRecord `json:"notifications"`
}

type webhookRecord struct {
	ID         string `json:"id"`
	MedicineID string `json:"medicine_id"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

// PublishCreated posts a summary of freshly created notifications.
func (p *WebhookPublisher) PublishCreated(ctx context.Context, created []*types.Notification) error {
	if len(created) == 0 {
		return nil
	}

	event := webhookEvent{
		Event:      "notifications.created",
		OccurredAt: time.Now().UTC(),
	}
	for _, n := range created {
		event.Notifications = append(event.Notifications, webhookRecord{
			ID:         n.ID,
			MedicineID: n.MedicineID,
			Type:       string(n.Type),
			Message:    n.Message,
		})
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook receiver rejected delivery with status %d", resp.StatusCode)
	}

	p.logger.InfoContext(ctx, "alert webhook delivered",
		"count", len(created),
		"status", resp.StatusCode,
	)

	return nil
}
