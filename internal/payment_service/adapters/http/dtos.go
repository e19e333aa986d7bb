package http

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngestSMSRequest is posted by the forwarder app and by API integrations.
type IngestSMSRequest struct {
	Sender     string     `json:"sender" validate:"required,max=64"`
	Message    string     `json:"message" validate:"required,max=2048"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Source     string     `json:"source,omitempty" validate:"omitempty,oneof=forwarder-app api"`
}

type ParsedSMS struct {
	Method        string           `json:"method"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Sender        string           `json:"sender,omitempty"`
	PaymentLike   bool             `json:"payment_like"`
}

type IngestSMSResponse struct {
	SMSLogID         int64     `json:"sms_log_id,string"`
	Parsed           ParsedSMS `json:"parsed"`
	Matched          bool      `json:"matched"`
	MatchOutcome     string    `json:"match_outcome"`
	MatchedPaymentID int64     `json:"matched_payment_id,omitempty,string"`
}

// SubmitPaymentRequest is the customer checkout form. ProofImage is base64 in
// JSON and only used for bank transfers.
type SubmitPaymentRequest struct {
	Method           string          `json:"method" validate:"required,oneof=bkash nagad rocket upay bank"`
	TransactionID    string          `json:"transaction_id" validate:"required,max=64"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	SenderNumber     string          `json:"sender_number,omitempty" validate:"omitempty,max=20"`
	OrderID          string          `json:"order_id,omitempty" validate:"omitempty,max=128"`
	CustomerEmail    string          `json:"customer_email,omitempty" validate:"omitempty,email"`
	ProofImage       []byte          `json:"proof_image,omitempty"`
	ProofContentType string          `json:"proof_content_type,omitempty"`
}

type SubmitPaymentResponse struct {
	PaymentID    int64  `json:"payment_id,string"`
	Status       string `json:"status"`
	MatchOutcome string `json:"match_outcome"`
}

type DuplicatePaymentResponse struct {
	Error             string `json:"error"`
	ExistingPaymentID int64  `json:"existing_payment_id,string"`
}

// PaymentResponse never carries the full sender number.
type PaymentResponse struct {
	PaymentID          int64           `json:"payment_id,string"`
	Status             string          `json:"status"`
	Method             string          `json:"method"`
	TransactionID      string          `json:"transaction_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Sender             string          `json:"sender,omitempty"`
	VerificationSource string          `json:"verification_source,omitempty"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	OrderID            string          `json:"order_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type VerifyPaymentRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm reject"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

type VerifyPaymentResponse struct {
	Success          bool `json:"success"`
	AlreadyProcessed bool `json:"already_processed"`
}

type ActivityResponse struct {
	ID        int64     `json:"id,string"`
	Action    string    `json:"action"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
	SMSLogID  *int64    `json:"sms_log_id,omitempty,string"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentMethodResponse struct {
	Method       string `json:"method"`
	DisplayName  string `json:"display_name"`
	Instructions string `json:"instructions"`
}

type RotateSecretResponse struct {
	Secret string `json:"secret"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}
