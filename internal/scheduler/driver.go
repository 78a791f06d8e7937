// Package scheduler drives the periodic inventory jobs: the notification
// check, the reactivation sweep, the retention cleanup, and activity log
// archival. Each job runs on its own ticker; a slow run never overlaps the
// next run of the same job.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"pharmstock/internal/notifications"
	"pharmstock/internal/types"
)

// InventoryEngine is the slice of the notification engine the driver invokes.
type InventoryEngine interface {
	// Reconcile scans the inventory and creates notifications for firing
	// conditions.
	Reconcile(ctx context.Context, now time.Time) ([]*types.Notification, error)

	// Reactivate flips acknowledged notifications back to unread once their
	// deadline passes and the condition still holds.
	Reactivate(ctx context.Context, now time.Time) (int, error)

	// Cleanup purges old notifications per the retention rules.
	Cleanup(ctx context.Context, now time.Time) (notifications.CleanupResult, error)
}

// Archiver is the activity archival job, run on its own interval. Nil when
// archival is not configured.
type Archiver interface {
	ArchiveOldEntries(ctx context.Context, now time.Time) (int, error)
}

// Config holds the job intervals.
type Config struct {
	CheckInterval      time.Duration
	ReactivateInterval time.Duration
	CleanupInterval    time.Duration
	ArchiveInterval    time.Duration
}

// Driver owns the background job goroutines.
type Driver struct {
	cfg      Config
	engine   InventoryEngine
	archiver Archiver
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewDriver creates a Driver. The archiver may be nil.
func NewDriver(cfg Config, engine InventoryEngine, archiver Archiver, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cfg:      cfg,
		engine:   engine,
		archiver: archiver,
		logger:   logger,
	}
}

// Start runs an immediate notification check, then launches the periodic
// jobs. The initial check is synchronous so the caller knows the inventory
// state was reconciled at least once before serving traffic; its failure is
// logged and left to the periodic check, like every other job failure.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.mu.Unlock()

	// Startup check runs on the caller's context so a failed boot can be
	// cancelled normally.
	if _, err := d.engine.Reconcile(ctx, time.Now().UTC()); err != nil {
		d.logger.ErrorContext(ctx, "startup notification check failed",
			"error", err,
		)
		// Not fatal. The periodic check retries on its interval.
	}

	d.launch(jobCtx, "notification_check", d.cfg.CheckInterval, func(ctx context.Context, now time.Time) error {
		_, err := d.engine.Reconcile(ctx, now)
		return err
	})
	d.launch(jobCtx, "reactivation_sweep", d.cfg.ReactivateInterval, func(ctx context.Context, now time.Time) error {
		_, err := d.engine.Reactivate(ctx, now)
		return err
	})
	d.launch(jobCtx, "retention_cleanup", d.cfg.CleanupInterval, func(ctx context.Context, now time.Time) error {
		_, err := d.engine.Cleanup(ctx, now)
		return err
	})
	if d.archiver != nil {
		d.launch(jobCtx, "activity_archival", d.cfg.ArchiveInterval, func(ctx context.Context, now time.Time) error {
			_, err := d.archiver.ArchiveOldEntries(ctx, now)
			return err
		})
	}

	d.logger.InfoContext(ctx, "scheduler started",
		"check_interval", d.cfg.CheckInterval.String(),
		"reactivate_interval", d.cfg.ReactivateInterval.String(),
		"cleanup_interval", d.cfg.CleanupInterval.String(),
	)
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.started = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// launch starts one ticker goroutine. Ticker delivery, not a timer reset,
// means a run longer than the interval simply skips the ticks it missed;
// runs of the same job never overlap.
func (d *Driver) launch(ctx context.Context, name string, interval time.Duration, job func(context.Context, time.Time) error) {
	if interval <= 0 {
		d.logger.Warn("job disabled, interval not set", "job", name)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.runOnce(ctx, name, job)
			}
		}
	}()
}

// runOnce executes a single job run with panic recovery, so one bad run
// cannot take down the whole scheduler.
func (d *Driver) runOnce(ctx context.Context, name string, job func(context.Context, time.Time) error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "scheduled job panicked",
				"job", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now().UTC()
	if err := job(ctx, start); err != nil {
		d.logger.ErrorContext(ctx, "scheduled job failed",
			"job", name,
			"duration", time.Since(start).String(),
			"error", err,
		)
		return
	}

	d.logger.InfoContext(ctx, "scheduled job complete",
		"job", name,
		"duration", time.Since(start).String(),
	)
}
