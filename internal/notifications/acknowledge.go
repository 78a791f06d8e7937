package notifications

import (
	"context"
	"fmt"
	"time"

	"pharmstock/internal/types"
)

// MarkRead records that the actor has seen the notification. The record is
// flipped to read, the actor is appended to the acknowledgement list (once
// per distinct user), and the reactivation deadline is pushed out to
// now + ReactivationWindow. Repeat acknowledgements by the same user refresh
// the deadline without duplicating the list entry.
func (e *Engine) MarkRead(ctx context.Context, id string, actor types.Actor, now time.Time) (*types.Notification, error) {
	if actor.ID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingActor,
			"an authenticated user is required to acknowledge a notification", nil)
	}

	n, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading notification: %w", err)
	}

	if !n.AcknowledgedBy(actor.ID) {
		n.MarkedBy = append(n.MarkedBy, types.Acknowledgement{
			UserID:   actor.ID,
			UserName: actor.Name,
			MarkedAt: now,
		})
	}

	n.Read = true
	reactivateAt := now.Add(e.cfg.ReactivationWindow)
	n.ReactivateAt = &reactivateAt

	if err := e.store.SaveAcknowledgement(ctx, n); err != nil {
		return nil, fmt.Errorf("saving acknowledgement: %w", err)
	}

	e.logger.InfoContext(ctx, "notification acknowledged",
		"notification_id", n.ID,
		"user_id", actor.ID,
		"reactivate_at", reactivateAt.Format(time.RFC3339),
	)

	return n, nil
}
