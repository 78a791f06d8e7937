package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pharmstock/internal/types"
)

// Reconcile scans the full inventory, evaluates every medicine against the
// configured thresholds, and creates a notification for each condition that
// holds and does not already have a stored record. Returns only the
// notifications this run actually persisted; a candidate skipped by the
// store's conflict guard was created by a concurrent run and belongs to
// that run's result.
//
// The in-memory dedup against ActiveKeys is a fast path; the store's unique
// (medicine, type) constraint is the authority, so two overlapping runs
// cannot double-create.
func (e *Engine) Reconcile(ctx context.Context, now time.Time) ([]*types.Notification, error) {
	meds, err := e.medicines.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing medicines: %w", err)
	}

	active, err := e.store.ActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active notification keys: %w", err)
	}

	var batch []*types.Notification
	for _, med := range meds {
		for _, typ := range e.cfg.Thresholds.Evaluate(med, now) {
			key := types.DedupKey{MedicineID: med.ID, Type: typ}
			if _, exists := active[key]; exists {
				continue
			}
			batch = append(batch, &types.Notification{
				ID:         "notif_" + uuid.NewString(),
				MedicineID: med.ID,
				Message:    e.cfg.Thresholds.Message(med, typ, now),
				Type:       typ,
			})
			// Guard against the same medicine appearing twice in the scan.
			active[key] = struct{}{}
		}
	}

	if len(batch) == 0 {
		e.logger.InfoContext(ctx, "notification reconcile found nothing new",
			"medicines_scanned", len(meds),
		)
		return nil, nil
	}

	persisted, err := e.store.CreateBatch(ctx, batch)
	if err != nil {
		// CreateBatch reports partial failures; whatever it inserted stands.
		e.logger.ErrorContext(ctx, "notification batch insert incomplete",
			"attempted", len(batch),
			"created", len(persisted),
			"error", err,
		)
	}

	e.logger.InfoContext(ctx, "notification reconcile complete",
		"medicines_scanned", len(meds),
		"created", len(persisted),
	)

	e.publishCreated(ctx, persisted)
	return persisted, err
}

// publishCreated pushes freshly created notifications to the external alert
// receiver. Failures are logged and swallowed; the notifications are already
// committed.
func (e *Engine) publishCreated(ctx context.Context, created []*types.Notification) {
	if e.publisher == nil || len(created) == 0 {
		return
	}
	if err := e.publisher.PublishCreated(ctx, created); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish created notifications",
			"count", len(created),
			"error", err,
		)
	}
}
