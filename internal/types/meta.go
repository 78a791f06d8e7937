package types

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

// Standard activity action strings. Handlers MUST use these for consistency
// so activity views group cleanly.
const (
	ActivityMedicineCreated = "medicine.created"
	ActivityMedicineUpdated = "medicine.updated"
	ActivityMedicineDeleted = "medicine.deleted"

	ActivityNotificationRead     = "notification.read"
	ActivityNotificationDeleted  = "notification.deleted"
	ActivityNotificationCheckRun = "notification.check_run"
	ActivityNotificationSweepRun = "notification.sweep_run"
	ActivityNotificationPurgeRun = "notification.purge_run"

	ActivityUserRegistered = "user.registered"
	ActivityUserUpdated    = "user.updated"
	ActivityUserDeleted    = "user.deleted"
)
