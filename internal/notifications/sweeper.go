package notifications

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// reactivateConcurrency bounds the parallel store writes during a
// reactivation sweep.
const reactivateConcurrency = 8

// Reactivate flips acknowledged notifications back to unread once their
// reactivation deadline has passed, but only when the underlying condition
// still holds for the notification's own type. A notification whose medicine
// was deleted, or whose condition cleared while it was silenced, is left
// acknowledged for the cleanup sweep to purge.
//
// Each record is handled independently; one failure does not stop the sweep.
// Returns the number of notifications flipped back to unread.
func (e *Engine) Reactivate(ctx context.Context, now time.Time) (int, error) {
	due, err := e.store.ListDueForReactivation(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("listing due notifications: %w", err)
	}

	if len(due) == 0 {
		e.logger.InfoContext(ctx, "no notifications due for reactivation")
		return 0, nil
	}

	e.logger.InfoContext(ctx, "reactivation sweep starting",
		"due", len(due),
	)

	var reactivated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reactivateConcurrency)

	for _, n := range due {
		n := n
		g.Go(func() error {
			med, err := e.medicines.GetByID(gctx, n.MedicineID)
			if err != nil {
				// Medicine gone or unreadable. Leave the record silenced;
				// the cleanup sweep will purge it.
				e.logger.ErrorContext(gctx, "skipping reactivation, medicine lookup failed",
					"notification_id", n.ID,
					"medicine_id", n.MedicineID,
					"error", err,
				)
				return nil
			}

			if !e.cfg.Thresholds.Holds(med, n.Type, now) {
				e.logger.InfoContext(gctx, "condition cleared, leaving notification acknowledged",
					"notification_id", n.ID,
					"type", string(n.Type),
				)
				return nil
			}

			if err := e.store.Reactivate(gctx, n.ID); err != nil {
				e.logger.ErrorContext(gctx, "failed to reactivate notification",
					"notification_id", n.ID,
					"error", err,
				)
				// Continue with other records; this one retries next sweep.
				return nil
			}

			reactivated.Add(1)
			return nil
		})
	}

	// Goroutines never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return int(reactivated.Load()), err
	}

	e.logger.InfoContext(ctx, "reactivation sweep complete",
		"due", len(due),
		"reactivated", reactivated.Load(),
	)

	return int(reactivated.Load()), nil
}

// CleanupResult reports what a cleanup sweep removed.
type CleanupResult struct {
	ReadPurged    int64 `json:"read_purged"`
	ExpiredPurged int64 `json:"expired_purged"`
}

// Total returns the combined number of purged records.
func (r CleanupResult) Total() int64 {
	return r.ReadPurged + r.ExpiredPurged
}

// Cleanup purges old notifications in two passes: acknowledged records older
// than the retention window, then any record older than the absolute TTL.
// The second pass backstops unread notifications nobody ever acknowledged.
// A failure in one pass does not skip the other.
func (e *Engine) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	var (
		result   CleanupResult
		firstErr error
	)

	readCutoff := now.Add(-e.cfg.RetentionWindow)
	readPurged, err := e.store.DeleteReadBefore(ctx, readCutoff)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to purge read notifications",
			"cutoff", readCutoff.Format(time.RFC3339),
			"error", err,
		)
		firstErr = fmt.Errorf("purging read notifications: %w", err)
	}
	result.ReadPurged = readPurged

	ttlCutoff := now.Add(-e.cfg.AbsoluteTTL)
	expiredPurged, err := e.store.DeleteAllBefore(ctx, ttlCutoff)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to purge expired notifications",
			"cutoff", ttlCutoff.Format(time.RFC3339),
			"error", err,
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("purging expired notifications: %w", err)
		}
	}
	result.ExpiredPurged = expiredPurged

	if result.Total() > 0 {
		e.logger.InfoContext(ctx, "notification cleanup complete",
			"read_purged", result.ReadPurged,
			"expired_purged", result.ExpiredPurged,
		)
	}

	return result, firstErr
}
