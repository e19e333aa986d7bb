// Package events turns committed payment transitions into outbound side
// effects: NATS events for order systems and notification emails.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/messagebroker"
)

// NATS subjects.
const (
	SubjectPaymentConfirmedV1 = "payments.confirmed.v1"
	SubjectPaymentFailedV1    = "payments.failed.v1"
	SubjectOrderPaidV1        = "orders.paid.v1"
	SubjectOrderFailedV1      = "orders.failed.v1"
)

// PaymentEvent is the JSON body published on every subject. The sender number
// is never included.
type PaymentEvent struct {
	EventID            string          `json:"event_id"`
	PaymentID          int64           `json:"payment_id,string"`
	OrderID            string          `json:"order_id,omitempty"`
	Method             string          `json:"method"`
	TransactionID      string          `json:"transaction_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	Action             string          `json:"action"`
	VerificationSource string          `json:"verification_source,omitempty"`
	Actor              string          `json:"actor"`
	Notes              string          `json:"notes,omitempty"`
	SMSLogID           *int64          `json:"sms_log_id,omitempty,string"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// NATSHook publishes a payment event for every transition and, when the
// payment carries an order id, an order event as well.
type NATSHook struct {
	publisher messagebroker.Publisher
	logger    *slog.Logger
}

func NewNATSHook(publisher messagebroker.Publisher, logger *slog.Logger) *NATSHook {
	return &NATSHook{publisher: publisher, logger: logger.With("component", "nats_event_hook")}
}

func (h *NATSHook) OnTransition(ctx context.Context, ev app.TransitionEvent) {
	p := ev.Payment
	body, err := json.Marshal(PaymentEvent{
		EventID:            uuid.NewString(),
		PaymentID:          p.ID,
		OrderID:            p.OrderID,
		Method:             string(p.Method),
		TransactionID:      p.TransactionID,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             string(ev.NewStatus),
		Action:             ev.Action,
		VerificationSource: string(ev.Source),
		Actor:              ev.Actor,
		Notes:              ev.Notes,
		SMSLogID:           ev.SMSLogID,
		OccurredAt:         ev.At,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to marshal payment event", "payment_id", p.ID, "error", err)
		return
	}

	paymentSubject, orderSubject := SubjectPaymentFailedV1, SubjectOrderFailedV1
	if ev.NewStatus == domain.StatusConfirmed {
		paymentSubject, orderSubject = SubjectPaymentConfirmedV1, SubjectOrderPaidV1
	}

	// Publishing must not depend on the request that caused the transition.
	pubCtx := context.WithoutCancel(ctx)
	h.publish(pubCtx, paymentSubject, p.ID, body)
	if p.OrderID != "" {
		h.publish(pubCtx, orderSubject, p.ID, body)
	}
}

func (h *NATSHook) publish(ctx context.Context, subject string, paymentID int64, body []byte) {
	if err := h.publisher.Publish(ctx, subject, body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish payment event", "subject", subject, "payment_id", paymentID, "error", err)
		return
	}
	h.logger.InfoContext(ctx, "Published payment event", "subject", subject, "payment_id", paymentID)
}
