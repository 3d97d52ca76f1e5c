package models

const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
)

// Skip reasons reported per subscriber in a scheduling run.
const (
	ReasonUnsubscribed    = "unsubscribed"
	ReasonAlreadySent     = "already_sent_today"
	ReasonTrialExceeded   = "trial_exceeded_no_subscription"
	ReasonTimeNotDue      = "time_not_due"
	ReasonGenerationError = "generation_error"
)

// Result is the per-subscriber outcome of one scheduling run. Results
// are ephemeral: they are returned to the trigger caller and never
// persisted.
type Result struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
