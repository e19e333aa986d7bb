package domain

import "time"

// Activity actions.
const (
	ActionSubmitted      = "submitted"
	ActionConfirmed      = "confirmed"
	ActionRejected       = "rejected"
	ActionTimedOut       = "timed_out"
	ActionSenderMismatch = "sender_mismatch"
	ActionAmountMismatch = "amount_mismatch"
	ActionSecretRotated  = "webhook_secret_rotated"
)

// Well-known actors for automatic writes.
const (
	ActorSystem  = "system"
	ActorSweeper = "sweeper"
)

// ActivityEntry is an append-only audit row.
type ActivityEntry struct {
	ID        int64
	PaymentID *int64
	SMSLogID  *int64
	Action    string
	OldStatus Status
	NewStatus Status
	Actor     string
	Notes     string
	CreatedAt time.Time
}
