package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"pharmstock/internal/types"
)

// ArchiveDB defines the database operations the activity archiver needs.
type ArchiveDB interface {
	// ListOlderThan returns up to limit activity entries created before the
	// cutoff, oldest first.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.ActivityLog, error)

	// DeleteByIDs removes entries after they have been archived.
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// ActivityArchiver moves old activity log entries out of the database into
// gzip-compressed JSONL files on disk, in a fetch-write-delete batch cycle.
type ActivityArchiver struct {
	db        ArchiveDB
	dir       string
	retention time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewActivityArchiver creates an ActivityArchiver writing archives under dir.
func NewActivityArchiver(db ArchiveDB, dir string, retention time.Duration, batchSize int, logger *slog.Logger) *ActivityArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityArchiver{
		db:        db,
		dir:       dir,
		retention: retention,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ArchiveOldEntries archives activity entries older than the retention
// period. Each batch is compressed and written before its rows are deleted,
// so a failure mid-cycle loses nothing: unarchived rows are picked up again
// on the next run. Returns the number of entries archived.
func (a *ActivityArchiver) ArchiveOldEntries(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-a.retention)
	total := 0

	for batch := 0; ; batch++ {
		entries, err := a.db.ListOlderThan(ctx, cutoff, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("listing archivable activity: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		data, err := compressJSONL(entries)
		if err != nil {
			return total, fmt.Errorf("serializing activity batch: %w", err)
		}

		// The batch index keeps each file name unique within a run, so one
		// drain cycle never overwrites a batch whose rows it already deleted.
		name := fmt.Sprintf("activity_%s_%d_%03d.jsonl.gz",
			cutoff.Format("2006-01"), now.UnixNano(), batch)
		path := filepath.Join(a.dir, name)
		if err := writeArchiveFile(path, data); err != nil {
			return total, fmt.Errorf("writing archive %s: %w", path, err)
		}

		ids := make([]int64, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		deleted, err := a.db.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("deleting archived activity: %w", err)
		}
		total += int(deleted)

		a.logger.InfoContext(ctx, "archived activity batch",
			"batch_size", deleted,
			"archive", path,
			"total_archived", total,
		)

		if len(entries) < a.batchSize {
			break
		}
	}

	return total, nil
}

// compressJSONL serializes entries to newline-delimited JSON and gzips the
// result.
func compressJSONL(entries []*types.ActivityLog) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return nil, fmt.Errorf("marshaling activity entry %d: %w", entry.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeArchiveFile writes the archive atomically: to a temp file first, then
// renamed into place.
func writeArchiveFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
