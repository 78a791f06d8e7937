package db

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmstock/internal/types"
)

// ActivityRepository provides data access for the activity_logs table.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates an ActivityRepository backed by the given
// database connection.
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, user_id, action, entity, entity_id, details, created_at`

// List returns activity entries newest first. When userID is non-empty the
// result is scoped to that user's own entries.
func (r *ActivityRepository) List(ctx context.Context, userID string, limit int) ([]*types.ActivityLog, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_logs`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list activity", err)
	}
	defer rows.Close()

	var entries []*types.ActivityLog
	for rows.Next() {
		entry, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity row", scanErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating activity rows", err)
	}
	return entries, nil
}

// Create appends an entry to the activity log.
func (r *ActivityRepository) Create(ctx context.Context, entry *types.ActivityLog) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode activity details", err)
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO activity_logs (user_id, action, entity, entity_id, details)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		entry.UserID, entry.Action, entry.Entity, entry.EntityID, details,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create activity entry", err)
	}
	return nil
}

// Delete removes a single entry by id.
func (r *ActivityRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete activity entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundActivity, "activity entry not found", nil)
	}
	return nil
}

// ListOlderThan returns up to limit entries created before the cutoff, oldest
// first, for the archival sweep.
func (r *ActivityRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.ActivityLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+activityColumns+` FROM activity_logs
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list archivable activity", err)
	}
	defer rows.Close()

	var entries []*types.ActivityLog
	for rows.Next() {
		entry, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity row", scanErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating activity rows", err)
	}
	return entries, nil
}

// DeleteByIDs removes the given entries after they have been archived.
func (r *ActivityRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete archived activity", err)
	}
	return tag.RowsAffected(), nil
}

// scanActivity scans an activity_logs row, decoding the jsonb details column.
func scanActivity(row pgx.Row) (*types.ActivityLog, error) {
	var (
		entry   types.ActivityLog
		details []byte
	)
	err := row.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Entity,
		&entry.EntityID, &details, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(details)
}
