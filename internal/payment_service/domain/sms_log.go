package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngestSource is how an SMS reached the gateway.
type IngestSource string

const (
	IngestForwarderApp   IngestSource = "forwarder-app"
	IngestCarrierWebhook IngestSource = "carrier-webhook"
	IngestManualEntry    IngestSource = "manual-entry"
	IngestAPI            IngestSource = "api"
)

func (s IngestSource) Valid() bool {
	switch s {
	case IngestForwarderApp, IngestCarrierWebhook, IngestManualEntry, IngestAPI:
		return true
	}
	return false
}

// SMSLog is one received notification. SenderNumber and MessageBody are
// encrypted at rest; repositories hand back plaintext.
type SMSLog struct {
	ID                  int64
	SenderNumber        string
	MessageBody         string
	ParsedTransactionID string
	ParsedAmount        decimal.NullDecimal
	ParsedSender        string
	PaymentMethod       Method
	IsPaymentLike       bool
	Parser              string
	IsProcessed         bool
	MatchedPaymentID    *int64
	Source              IngestSource
	ReceivedAt          time.Time
	ProcessedAt         *time.Time
}

// UnprocessedFilter narrows the SMS candidate pool. Only payment-like logs
// are returned. TransactionID is compared after NormalizeTransactionID.
type UnprocessedFilter struct {
	Method        Method
	TransactionID string
	Since         time.Time
	Limit         int
}
