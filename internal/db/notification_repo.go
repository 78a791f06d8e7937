package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmstock/internal/types"
)

// NotificationRepository provides data access for the notifications table.
//
// The table carries a UNIQUE (medicine_id, type) index: the store-level
// enforcement of the at-most-one-notification-per-condition rule. CreateBatch
// leans on it with ON CONFLICT DO NOTHING so that concurrent reconcile passes
// racing on the same key produce exactly one persisted record.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// List returns all notifications newest first, each joined with the minimal
// medicine fields the dashboard renders. Notifications whose medicine has
// been deleted are still returned, with a nil medicine snapshot.
func (r *NotificationRepository) List(ctx context.Context) ([]*types.NotificationView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT n.id, n.medicine_id, n.message, n.type, n.read, n.marked_by,
		        n.reactivate_at, n.created_at,
		        m.name, m.category, m.stock_quantity, m.expiry_date
		 FROM notifications n
		 LEFT JOIN medicines m ON m.id = n.medicine_id
		 ORDER BY n.created_at DESC`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notifications", err)
	}
	defer rows.Close()

	var views []*types.NotificationView
	for rows.Next() {
		v, scanErr := scanNotificationView(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", scanErr)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}
	return views, nil
}

// GetView returns a single notification joined with its medicine snapshot.
func (r *NotificationRepository) GetView(ctx context.Context, id string) (*types.NotificationView, error) {
	row := r.db.QueryRow(ctx,
		`SELECT n.id, n.medicine_id, n.message, n.type, n.read, n.marked_by,
		        n.reactivate_at, n.created_at,
		        m.name, m.category, m.stock_quantity, m.expiry_date
		 FROM notifications n
		 LEFT JOIN medicines m ON m.id = n.medicine_id
		 WHERE n.id = $1`, id)
	v, err := scanNotificationView(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification", err)
	}
	return v, nil
}

// GetByID returns a bare notification record without the medicine join.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*types.Notification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, medicine_id, message, type, read, marked_by, reactivate_at, created_at
		 FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification", err)
	}
	return n, nil
}

// ActiveKeys returns the dedup key of every non-purged notification,
// regardless of read state. The reconciler treats any existing record as
// blocking recreation of its key.
func (r *NotificationRepository) ActiveKeys(ctx context.Context) (map[types.DedupKey]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT medicine_id, type FROM notifications`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notification keys", err)
	}
	defer rows.Close()

	keys := make(map[types.DedupKey]struct{})
	for rows.Next() {
		var (
			medicineID string
			notifType  string
		)
		if err := rows.Scan(&medicineID, &notifType); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification key", err)
		}
		keys[types.DedupKey{MedicineID: medicineID, Type: types.NotificationType(notifType)}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification keys", err)
	}
	return keys, nil
}

// CreateBatch inserts the given notifications, skipping any whose
// (medicine_id, type) key already exists. A concurrent insert of the same
// key is treated as already-handled, not an error. Returns the records
// actually persisted; per-record failures are collected and joined so the
// caller can log them while keeping the partial result.
func (r *NotificationRepository) CreateBatch(ctx context.Context, batch []*types.Notification) ([]*types.Notification, error) {
	var persisted []*types.Notification
	var errs []error
	for _, n := range batch {
		markedBy, err := marshalAcks(n.MarkedBy)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tag, err := r.db.Exec(ctx,
			`INSERT INTO notifications (id, medicine_id, message, type, read, marked_by, reactivate_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
			 ON CONFLICT (medicine_id, type) DO NOTHING`,
			n.ID, n.MedicineID, n.Message, string(n.Type), n.Read, markedBy,
			n.ReactivateAt, nilIfZeroTime(n.CreatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Another writer beat us to this key. Already handled.
				continue
			}
			errs = append(errs, types.NewAppError(types.ErrCodeInternalDB, "failed to insert notification "+n.Key().String(), err))
			continue
		}
		if tag.RowsAffected() > 0 {
			persisted = append(persisted, n)
		}
	}
	return persisted, errors.Join(errs...)
}

// SaveAcknowledgement persists the acknowledgement state of a notification:
// read flag, marked_by list, and reactivation deadline.
func (r *NotificationRepository) SaveAcknowledgement(ctx context.Context, n *types.Notification) error {
	markedBy, err := marshalAcks(n.MarkedBy)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode acknowledgements", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = $1, marked_by = $2, reactivate_at = $3 WHERE id = $4`,
		n.Read, markedBy, n.ReactivateAt, n.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save acknowledgement", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// ListDueForReactivation returns acknowledged notifications whose
// reactivation deadline has passed.
func (r *NotificationRepository) ListDueForReactivation(ctx context.Context, now time.Time) ([]*types.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, medicine_id, message, type, read, marked_by, reactivate_at, created_at
		 FROM notifications
		 WHERE read = TRUE AND reactivate_at IS NOT NULL AND reactivate_at <= $1`,
		now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due notifications", err)
	}
	defer rows.Close()

	var due []*types.Notification
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan due notification", scanErr)
		}
		due = append(due, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating due notifications", err)
	}
	return due, nil
}

// Reactivate flips a notification back to unread and clears its deadline.
// The WHERE guard on read keeps the update idempotent if a concurrent
// mark-read already rewrote the row (last write wins either way).
func (r *NotificationRepository) Reactivate(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = FALSE, reactivate_at = NULL WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reactivate notification", err)
	}
	return nil
}

// DeleteReadBefore removes acknowledged notifications created before the
// cutoff. Unread notifications are never touched by this rule.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete read notifications", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllBefore removes notifications created before the cutoff regardless
// of read state. This is the absolute TTL backstop.
func (r *NotificationRepository) DeleteAllBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired notifications", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a single notification by id.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// scanNotification scans a bare notifications row.
func scanNotification(row pgx.Row) (*types.Notification, error) {
	var (
		n            types.Notification
		notifType    string
		markedBy     []byte
		reactivateAt *time.Time
	)
	err := row.Scan(&n.ID, &n.MedicineID, &n.Message, &notifType, &n.Read,
		&markedBy, &reactivateAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = types.NotificationType(notifType)
	n.ReactivateAt = reactivateAt
	if err := unmarshalAcks(markedBy, &n.MarkedBy); err != nil {
		return nil, err
	}
	return &n, nil
}

// scanNotificationView scans a notification joined with nullable medicine
// columns from the LEFT JOIN.
func scanNotificationView(row pgx.Row) (*types.NotificationView, error) {
	var (
		v            types.NotificationView
		notifType    string
		markedBy     []byte
		reactivateAt *time.Time

		medName     *string
		medCategory *string
		medStock    *int
		medExpiry   *time.Time
	)
	err := row.Scan(&v.ID, &v.MedicineID, &v.Message, &notifType, &v.Read,
		&markedBy, &reactivateAt, &v.CreatedAt,
		&medName, &medCategory, &medStock, &medExpiry)
	if err != nil {
		return nil, err
	}
	v.Type = types.NotificationType(notifType)
	v.ReactivateAt = reactivateAt
	if err := unmarshalAcks(markedBy, &v.MarkedBy); err != nil {
		return nil, err
	}
	if medName != nil {
		ref := &types.MedicineRef{Name: *medName, ExpiryDate: medExpiry}
		if medCategory != nil {
			ref.Category = *medCategory
		}
		if medStock != nil {
			ref.StockQuantity = *medStock
		}
		v.Medicine = ref
	}
	return &v, nil
}

// marshalAcks encodes the marked_by list for the jsonb column. An empty list
// is stored as [] rather than NULL so reads round-trip cleanly.
func marshalAcks(acks []types.Acknowledgement) ([]byte, error) {
	if acks == nil {
		acks = []types.Acknowledgement{}
	}
	return json.Marshal(acks)
}

// unmarshalAcks decodes the marked_by jsonb column.
func unmarshalAcks(data []byte, dst *[]types.Acknowledgement) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	return json.Unmarshal(data, dst)
}

// nilIfZeroTime returns nil for the zero time so the database default applies.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
