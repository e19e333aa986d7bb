package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method is the payment channel a customer used.
type Method string

const (
	MethodBKash   Method = "bkash"
	MethodNagad   Method = "nagad"
	MethodRocket  Method = "rocket"
	MethodUpay    Method = "upay"
	MethodBank    Method = "bank"
	MethodUnknown Method = "unknown" // classifier output only, never stored on a Payment
)

// MFSMethods lists the methods that take part in automatic matching.
var MFSMethods = []Method{MethodBKash, MethodNagad, MethodRocket, MethodUpay}

func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodBKash, MethodNagad, MethodRocket, MethodUpay, MethodBank:
		return m, true
	}
	return "", false
}

// IsMFS reports whether m is one of the mobile providers. Bank and unknown
// are never auto-verified.
func (m Method) IsMFS() bool {
	for _, v := range MFSMethods {
		if m == v {
			return true
		}
	}
	return false
}

// Status of a Payment. Only pending transitions automatically.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// VerificationSource records who decided a Payment's fate. The zero value
// means no source (timeouts, pending payments).
type VerificationSource string

const (
	SourceNone   VerificationSource = ""
	SourceSMS    VerificationSource = "sms"    // matched at submission or ingestion time
	SourceManual VerificationSource = "manual" // merchant decision
	SourceAuto   VerificationSource = "auto"   // matched by the sweeper
)

// Payment is a customer's self-reported transfer.
type Payment struct {
	ID                 int64
	Method             Method
	TransactionID      string
	SenderNumber       string // empty for bank
	Amount             decimal.Decimal
	Currency           string
	Status             Status
	VerificationSource VerificationSource
	VerifiedBy         string
	VerifiedAt         *time.Time
	Notes              string
	OrderID            string
	CustomerEmail      string
	ProofObjectKey     string // bank only
	MatchedSMSLogID    *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeTransactionID uppercases and trims a provider reference.
func NormalizeTransactionID(txnID string) string {
	return strings.ToUpper(strings.TrimSpace(txnID))
}

// PaymentDraft is the customer-supplied part of a Payment.
type PaymentDraft struct {
	Method        Method
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	SenderNumber  string
	OrderID       string
	CustomerEmail string
	Proof         *Attachment
}

// Attachment is an uploaded proof-of-transfer image.
type Attachment struct {
	Data        []byte
	ContentType string
}

// PendingFilter narrows the candidate pool. A zero Since means no lower bound.
// TransactionID is compared after NormalizeTransactionID. A non-zero After
// resumes a scan strictly past that (created_at, id) position.
type PendingFilter struct {
	Method        Method
	TransactionID string
	Since         time.Time
	After         *PendingCursor
	Limit         int
}

// PendingCursor is a keyset position in the oldest-first pending order.
type PendingCursor struct {
	CreatedAt time.Time
	ID        int64
}

// CursorOf returns the position just past p.
func CursorOf(p *Payment) *PendingCursor {
	return &PendingCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Transition is a conditional status change out of pending.
type Transition struct {
	PaymentID int64
	To        Status
	Source    VerificationSource
	Actor     string
	Action    string
	Notes     string
	SMSLogID  *int64 // marked processed and linked in the same write
	At        time.Time
}
