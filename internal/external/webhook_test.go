package external

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"pharmstock/internal/types"
)

func webhookTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// noopSleep is a sleep function that does nothing, for fast tests.
func noopSleep(time.Duration) {}

func newTestPublisher(url string) *WebhookPublisher {
	p := NewWebhookPublisher(url, 5*time.Second, "PharmStock-Test/1.0", webhookTestLogger())
	p.client.sleepFn = noopSleep
	return p
}

func sampleNotifications() []*types.Notification {
	return []*types.Notification{
		{
			ID:         "notif_1",
			MedicineID: "med_1",
			Type:       types.NotificationLowStock,
			Message:    "Amoxicillin stock is low (12 left).",
		},
		{
			ID:         "notif_2",
			MedicineID: "med_2",
			Type:       types.NotificationExpiry,
			Message:    "Ibuprofen will expire in 3 days.",
		},
	}
}

func TestPublishCreated_PostsEventPayload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	pub := newTestPublisher(server.URL)
	if err := pub.PublishCreated(context.Background(), sampleNotifications()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}

	var event webhookEvent
	if err := json.Unmarshal(gotBody, &event); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if event.Event != "notifications.created" {
		t.Errorf("event = %q", event.Event)
	}
	if len(event.Notifications) != 2 {
		t.Fatalf("expected 2 records, got %d", len(event.Notifications))
	}
	if event.Notifications[0].ID != "notif_1" || event.Notifications[0].Type != "low-stock" {
		t.Errorf("unexpected first record: %+v", event.Notifications[0])
	}
}

func TestPublishCreated_EmptyBatchIsNoop(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := newTestPublisher(server.URL)
	if err := pub.PublishCreated(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no HTTP call for an empty batch, got %d", calls.Load())
	}
}

func TestPublishCreated_ReceiverErrorReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	pub := newTestPublisher(server.URL)
	if err := pub.PublishCreated(context.Background(), sampleNotifications()); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPublishCreated_RetriesOn5xx(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := newTestPublisher(server.URL)
	if err := pub.PublishCreated(context.Background(), sampleNotifications()); err != nil {
		t.Fatalf("expected retries to recover, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestPublishCreated_UnreachableReceiver(t *testing.T) {
	pub := newTestPublisher("http://127.0.0.1:1")
	if err := pub.PublishCreated(context.Background(), sampleNotifications()); err == nil {
		t.Fatal("expected error for unreachable receiver")
	}
}
