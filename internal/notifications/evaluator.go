// Package notifications implements the stock alert lifecycle: condition
// evaluation against the inventory, deduplicated notification creation,
// acknowledgement tracking, scheduled reactivation of acknowledged alerts
// whose condition still holds, and retention-based purging.
package notifications

import (
	"fmt"
	"time"

	"pharmstock/internal/types"
)

// Thresholds holds the tunable trigger conditions for inventory alerts.
type Thresholds struct {
	// LowStock fires a low-stock notification when a medicine's stock
	// quantity is at or below this value.
	LowStock int

	// ExpiryDays fires an expiry notification when a medicine expires
	// within this many days from now.
	ExpiryDays int
}

// DaysUntil returns the number of whole days from now until t, rounding any
// partial day up. A medicine expiring 29.1 days from now is treated as 30
// days out.
func DaysUntil(now, t time.Time) int {
	diff := t.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// Evaluate returns the notification types whose trigger condition currently
// holds for the given medicine. A medicine can trip both conditions at once.
//
// Expiry fires while the ceiling day count is still at least zero, so a
// medicine within a day of its expiry instant (either side) alerts; anything
// a full day or more past expiry never does.
func (t Thresholds) Evaluate(med *types.Medicine, now time.Time) []types.NotificationType {
	var fired []types.NotificationType
	for _, typ := range types.AllNotificationTypes {
		if t.Holds(med, typ, now) {
			fired = append(fired, typ)
		}
	}
	return fired
}

// Holds reports whether the trigger condition for a single notification type
// currently holds for the medicine. The reactivation sweeper uses this to
// re-check only the condition the acknowledged notification was raised for.
func (t Thresholds) Holds(med *types.Medicine, typ types.NotificationType, now time.Time) bool {
	switch typ {
	case types.NotificationExpiry:
		if med.ExpiryDate == nil {
			return false
		}
		days := DaysUntil(now, *med.ExpiryDate)
		return days >= 0 && days <= t.ExpiryDays
	case types.NotificationLowStock:
		return med.StockQuantity <= t.LowStock
	default:
		return false
	}
}

// Message renders the human-readable alert text for a notification.
func (t Thresholds) Message(med *types.Medicine, typ types.NotificationType, now time.Time) string {
	switch typ {
	case types.NotificationExpiry:
		days := DaysUntil(now, *med.ExpiryDate)
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		return fmt.Sprintf("%s will expire in %d %s.", med.Name, days, unit)
	case types.NotificationLowStock:
		return fmt.Sprintf("%s stock is low (%d left).", med.Name, med.StockQuantity)
	default:
		return ""
	}
}
