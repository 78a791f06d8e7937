package notifications

import (
	"context"
	"log/slog"
	"time"

	"pharmstock/internal/types"
)

// MedicineSource defines the inventory reads the engine needs.
type MedicineSource interface {
	// List returns every medicine in the inventory.
	List(ctx context.Context) ([]*types.Medicine, error)

	// GetByID returns a single medicine, or a not-found error if it was
	// deleted since the notification referencing it was created.
	GetByID(ctx context.Context, id string) (*types.Medicine, error)
}

// NotificationStore defines the persistence operations the engine needs.
type NotificationStore interface {
	// ActiveKeys returns the (medicine, type) pairs that already have a
	// stored notification, read or unread. Any stored record blocks
	// recreation until the retention sweeper purges it.
	ActiveKeys(ctx context.Context) (map[types.DedupKey]struct{}, error)

	// CreateBatch inserts new notifications, silently skipping any whose
	// (medicine, type) pair gained a record since ActiveKeys was read.
	// Returns the records actually inserted, in batch order.
	CreateBatch(ctx context.Context, batch []*types.Notification) ([]*types.Notification, error)

	// GetByID returns a stored notification.
	GetByID(ctx context.Context, id string) (*types.Notification, error)

	// SaveAcknowledgement persists the read flag, acknowledgement list, and
	// reactivation time of a notification.
	SaveAcknowledgement(ctx context.Context, n *types.Notification) error

	// ListDueForReactivation returns acknowledged notifications whose
	// reactivation time has passed.
	ListDueForReactivation(ctx context.Context, now time.Time) ([]*types.Notification, error)

	// Reactivate flips a notification back to unread and clears its
	// reactivation time.
	Reactivate(ctx context.Context, id string) error

	// DeleteReadBefore purges acknowledged notifications created before the
	// cutoff. Returns the number of rows removed.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteAllBefore purges every notification created before the cutoff,
	// read or not. Returns the number of rows removed.
	DeleteAllBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertPublisher fans newly created notifications out to an external
// receiver. Publish failures never fail the reconcile run.
type AlertPublisher interface {
	PublishCreated(ctx context.Context, created []*types.Notification) error
}

// Config holds the engine's thresholds and lifecycle windows.
type Config struct {
	Thresholds Thresholds

	// ReactivationWindow is how long an acknowledgement silences a
	// notification before the sweeper considers flipping it back to unread.
	ReactivationWindow time.Duration

	// RetentionWindow is how long an acknowledged notification is kept
	// before the cleanup sweep purges it.
	RetentionWindow time.Duration

	// AbsoluteTTL is the age at which any notification is purged regardless
	// of read state, backstopping records nobody ever acknowledges.
	AbsoluteTTL time.Duration
}

// Engine drives the notification lifecycle: reconciling the inventory into
// alerts, recording acknowledgements, reactivating stale acknowledgements,
// and purging old records.
type Engine struct {
	medicines MedicineSource
	store     NotificationStore
	publisher AlertPublisher // nil if no external receiver is configured
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates an Engine. The publisher may be nil when no alert
// receiver is configured.
func NewEngine(medicines MedicineSource, store NotificationStore, publisher AlertPublisher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		medicines: medicines,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}
