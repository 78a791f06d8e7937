package types

import (
	"fmt"
	"time"
)

// Medicine is an inventory record. The notification engine reads only
// StockQuantity and ExpiryDate; the remaining fields exist for the CRUD API.
type Medicine struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Category      string     `json:"category" db:"category"`
	Price         float64    `json:"price" db:"price"`
	Dosage        string     `json:"dosage" db:"dosage"`
	Manufacturer  string     `json:"manufacturer" db:"manufacturer"`
	Quantity      int        `json:"quantity" db:"quantity"`
	StockQuantity int        `json:"stock_quantity" db:"stock_quantity"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Acknowledgement records a single user marking a notification as read.
// The MarkedBy slice on Notification is append-only and holds at most one
// entry per distinct user.
type Acknowledgement struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	MarkedAt time.Time `json:"marked_at"`
}

// Notification is an alert raised against a medicine. At most one record
// exists per (MedicineID, Type) pair until the retention sweeper purges it;
// the store enforces this with a unique index.
type Notification struct {
	ID         string            `json:"id" db:"id"`
	MedicineID string            `json:"medicine_id" db:"medicine_id"`
	Message    string            `json:"message" db:"message"`
	Type       NotificationType  `json:"type" db:"type"`
	Read       bool              `json:"read" db:"read"`
	MarkedBy   []Acknowledgement `json:"marked_by" db:"marked_by"`
	// ReactivateAt is set when the notification is acknowledged. Once it
	// passes, the reactivation sweeper flips the record back to unread if
	// the underlying condition still holds.
	ReactivateAt *time.Time `json:"reactivate_at,omitempty" db:"reactivate_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AcknowledgedBy reports whether the given user already appears in MarkedBy.
func (n *Notification) AcknowledgedBy(userID string) bool {
	for _, ack := range n.MarkedBy {
		if ack.UserID == userID {
			return true
		}
	}
	return false
}

// DedupKey identifies the at-most-one-active-notification constraint:
// one notification per medicine per condition type.
type DedupKey struct {
	MedicineID string
	Type       NotificationType
}

// String renders the key for log output.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s/%s", k.MedicineID, k.Type)
}

// Key returns the dedup key for a notification.
func (n *Notification) Key() DedupKey {
	return DedupKey{MedicineID: n.MedicineID, Type: n.Type}
}

// MedicineRef carries the minimal medicine fields joined onto notification
// list responses. Nil when the referenced medicine has been deleted.
type MedicineRef struct {
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	StockQuantity int        `json:"stock_quantity"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

// NotificationView is the read model returned by the list/get endpoints:
// the notification joined with its medicine snapshot.
type NotificationView struct {
	Notification
	Medicine *MedicineRef `json:"medicine,omitempty"`
}

// User is a staff account. PasswordHash is never serialized.
type User struct {
	ID           string     `json:"id" db:"id"`
	FullName     string     `json:"full_name" db:"full_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// ActivityLog records a mutation performed through the API, for audit views.
type ActivityLog struct {
	ID        int64          `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Action    string         `json:"action" db:"action"`
	Entity    string         `json:"entity" db:"entity"`
	EntityID  string         `json:"entity_id,omitempty" db:"entity_id"`
	Details   map[string]any `json:"details,omitempty" db:"details"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
