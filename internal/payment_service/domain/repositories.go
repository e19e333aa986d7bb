package domain

import "context"

// PaymentRepository persists Payments. Transition is the only way a status
// leaves pending; it returns ErrConflict when another writer got there first.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	FindByTransaction(ctx context.Context, method Method, transactionID string) (*Payment, error)
	// ListPending returns pending payments oldest first.
	ListPending(ctx context.Context, filter PendingFilter) ([]*Payment, error)
	Transition(ctx context.Context, t Transition) error
}

type SMSLogRepository interface {
	Create(ctx context.Context, l *SMSLog) error
	GetByID(ctx context.Context, id int64) (*SMSLog, error)
	// ListUnprocessed returns unprocessed payment-like logs newest first.
	ListUnprocessed(ctx context.Context, filter UnprocessedFilter) ([]*SMSLog, error)
	MarkProcessed(ctx context.Context, logID, paymentID int64) error
}

type ActivityRepository interface {
	Append(ctx context.Context, e *ActivityEntry) error
	ListByPayment(ctx context.Context, paymentID int64) ([]*ActivityEntry, error)
}

// SettingsRepository is a small key/value store for runtime secrets.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// IDGenerator hands out numeric identifiers.
type IDGenerator interface {
	NextID() int64
}
