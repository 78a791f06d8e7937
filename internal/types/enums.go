package types

// NotificationType is the closed set of alert conditions the inventory engine
// can raise. Keeping this a typed enum (rather than an open string) lets the
// evaluator and reconciler switch exhaustively over it.
type NotificationType string

const (
	// NotificationExpiry fires when a medicine is within the expiry threshold
	// window but not yet expired.
	NotificationExpiry NotificationType = "expiry"
	// NotificationLowStock fires when a medicine's stock quantity is at or
	// below the low-stock threshold.
	NotificationLowStock NotificationType = "low-stock"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationExpiry, NotificationLowStock:
		return true
	}
	return false
}

// AllNotificationTypes lists every notification type in a stable order.
// Used by the reactivation sweeper when re-checking a stored record's type.
var AllNotificationTypes = []NotificationType{NotificationExpiry, NotificationLowStock}

// UserRole identifies the permission tier of a user account.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RolePharmacist UserRole = "pharmacist"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RolePharmacist
}
