package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

// ProofStorage keeps bank proof-of-transfer attachments.
type ProofStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

var proofExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// maxAmount is the first value NUMERIC(14, 2) cannot hold.
var maxAmount = decimal.New(1, 12)

// Manual verification actions.
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
)

// PaymentStore owns submission and the pending -> confirmed|failed state
// machine. Every transition is a conditional write in the repository; the
// loser of a race gets false, never an error.
type PaymentStore struct {
	payments domain.PaymentRepository
	activity domain.ActivityRepository
	proofs   ProofStorage
	ids      domain.IDGenerator
	currency string
	hooks    []TransitionHook
	now      func() time.Time
	logger   *slog.Logger
}

func NewPaymentStore(
	payments domain.PaymentRepository,
	activity domain.ActivityRepository,
	proofs ProofStorage,
	ids domain.IDGenerator,
	defaultCurrency string,
	logger *slog.Logger,
) *PaymentStore {
	return &PaymentStore{
		payments: payments,
		activity: activity,
		proofs:   proofs,
		ids:      ids,
		currency: defaultCurrency,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "payment_store"),
	}
}

// AddHook registers a post-transition callback. Not safe to call once the
// store is serving requests.
func (s *PaymentStore) AddHook(h TransitionHook) {
	s.hooks = append(s.hooks, h)
}

// Submit validates a customer draft and stores it as pending. A second
// submission of the same (transaction id, method) fails with
// *domain.DuplicateTransactionError naming the first payment.
func (s *PaymentStore) Submit(ctx context.Context, draft domain.PaymentDraft) (*domain.Payment, error) {
	p, err := s.validateDraft(draft)
	if err != nil {
		paymentsSubmittedCounter.WithLabelValues(string(draft.Method), "invalid").Inc()
		return nil, err
	}

	existing, err := s.payments.FindByTransaction(ctx, p.Method, p.TransactionID)
	switch {
	case err == nil:
		paymentsSubmittedCounter.WithLabelValues(string(p.Method), "duplicate").Inc()
		s.logger.InfoContext(ctx, "Duplicate transaction submitted",
			"method", p.Method, "transaction_id", p.TransactionID, "existing_payment_id", existing.ID)
		return nil, &domain.DuplicateTransactionError{ExistingID: existing.ID, Method: p.Method, TransactionID: p.TransactionID}
	case !errors.Is(err, domain.ErrNotFound):
		paymentsSubmittedCounter.WithLabelValues(string(p.Method), "error").Inc()
		return nil, fmt.Errorf("check duplicate transaction: %w", err)
	}

	p.ID = s.ids.NextID()
	if p.Method == domain.MethodBank {
		key, err := s.storeProof(ctx, p.ID, draft.Proof)
		if err != nil {
			paymentsSubmittedCounter.WithLabelValues(string(p.Method), "error").Inc()
			return nil, err
		}
		p.ProofObjectKey = key
	}

	if err := s.payments.Create(ctx, p); err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			result = "duplicate"
		}
		paymentsSubmittedCounter.WithLabelValues(string(p.Method), result).Inc()
		return nil, err
	}
	paymentsSubmittedCounter.WithLabelValues(string(p.Method), "created").Inc()

	pid := p.ID
	s.appendActivity(ctx, &domain.ActivityEntry{
		PaymentID: &pid,
		Action:    domain.ActionSubmitted,
		NewStatus: domain.StatusPending,
		Actor:     domain.ActorSystem,
		CreatedAt: p.CreatedAt,
	})
	s.logger.InfoContext(ctx, "Payment submitted",
		"payment_id", p.ID,
		"method", p.Method,
		"transaction_id", p.TransactionID,
		"amount", p.Amount.String(),
		"sender", vault.MaskPhone(p.SenderNumber),
	)
	return p, nil
}

func (s *PaymentStore) validateDraft(d domain.PaymentDraft) (*domain.Payment, error) {
	method, ok := domain.ParseMethod(string(d.Method))
	if !ok {
		return nil, domain.NewValidationError("method", "unsupported payment method")
	}
	txnID := domain.NormalizeTransactionID(d.TransactionID)
	if txnID == "" {
		return nil, domain.NewValidationError("transaction_id", "required")
	}
	if !d.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "must be greater than zero")
	}
	if !d.Amount.Equal(d.Amount.Round(2)) {
		return nil, domain.NewValidationError("amount", "must have at most two decimal places")
	}
	if d.Amount.GreaterThanOrEqual(maxAmount) {
		return nil, domain.NewValidationError("amount", "too large")
	}

	now := s.now()
	p := &domain.Payment{
		Method:        method,
		TransactionID: txnID,
		Amount:        d.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(d.Currency)),
		Status:        domain.StatusPending,
		OrderID:       strings.TrimSpace(d.OrderID),
		CustomerEmail: strings.TrimSpace(d.CustomerEmail),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Currency == "" {
		p.Currency = s.currency
	}

	if method == domain.MethodBank {
		if d.Proof == nil || len(d.Proof.Data) == 0 {
			return nil, domain.NewValidationError("proof_image", "bank transfers require a proof of transfer")
		}
		if _, ok := proofExtensions[d.Proof.ContentType]; !ok {
			return nil, domain.NewValidationError("proof_content_type", "must be a PNG, JPEG, WebP image or a PDF")
		}
		return p, nil
	}

	// Optional; without it matching relies on transaction id and amount.
	if strings.TrimSpace(d.SenderNumber) == "" {
		return p, nil
	}
	if !domain.IsValidMobile(d.SenderNumber) {
		return nil, domain.NewValidationError("sender_number", "must be a local mobile number such as 01712345678")
	}
	p.SenderNumber = domain.NormalizePhone(d.SenderNumber)
	return p, nil
}

func (s *PaymentStore) storeProof(ctx context.Context, paymentID int64, proof *domain.Attachment) (string, error) {
	if s.proofs == nil {
		return "", domain.NewValidationError("method", "bank transfer is not enabled")
	}
	key := fmt.Sprintf("bank-proofs/%d%s", paymentID, proofExtensions[proof.ContentType])
	if err := s.proofs.Put(ctx, key, proof.Data, proof.ContentType); err != nil {
		return "", fmt.Errorf("store proof of transfer: %w", err)
	}
	return key, nil
}

func (s *PaymentStore) Get(ctx context.Context, id int64) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *PaymentStore) Activity(ctx context.Context, paymentID int64) ([]*domain.ActivityEntry, error) {
	if _, err := s.payments.GetByID(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.activity.ListByPayment(ctx, paymentID)
}

// Confirm marks a pending payment confirmed. When matchedLogID is set the SMS
// log is marked processed and linked in the same write.
func (s *PaymentStore) Confirm(ctx context.Context, id int64, source domain.VerificationSource, matchedLogID *int64, actor, notes string) (bool, error) {
	return s.transition(ctx, domain.Transition{
		PaymentID: id,
		To:        domain.StatusConfirmed,
		Source:    source,
		Actor:     actor,
		Action:    domain.ActionConfirmed,
		Notes:     notes,
		SMSLogID:  matchedLogID,
	})
}

func (s *PaymentStore) Reject(ctx context.Context, id int64, source domain.VerificationSource, actor, notes string) (bool, error) {
	return s.transition(ctx, domain.Transition{
		PaymentID: id,
		To:        domain.StatusFailed,
		Source:    source,
		Actor:     actor,
		Action:    domain.ActionRejected,
		Notes:     notes,
	})
}

// Timeout fails a stale pending payment. The verification source stays null.
func (s *PaymentStore) Timeout(ctx context.Context, id int64, age time.Duration) (bool, error) {
	return s.transition(ctx, domain.Transition{
		PaymentID: id,
		To:        domain.StatusFailed,
		Source:    domain.SourceNone,
		Actor:     domain.ActorSweeper,
		Action:    domain.ActionTimedOut,
		Notes:     fmt.Sprintf("timed out: no matching SMS after %s", age.Truncate(time.Minute)),
	})
}

// ManualVerify applies a merchant decision. false means the payment had
// already left pending; that is a normal outcome.
func (s *PaymentStore) ManualVerify(ctx context.Context, id int64, action, notes, actor string) (bool, error) {
	switch action {
	case ActionConfirm:
		return s.Confirm(ctx, id, domain.SourceManual, nil, actor, notes)
	case ActionReject:
		return s.Reject(ctx, id, domain.SourceManual, actor, notes)
	}
	return false, domain.NewValidationError("action", "must be confirm or reject")
}

func (s *PaymentStore) transition(ctx context.Context, t domain.Transition) (bool, error) {
	t.At = s.now()
	err := s.payments.Transition(ctx, t)
	switch {
	case errors.Is(err, domain.ErrConflict):
		paymentTransitionCounter.WithLabelValues(string(t.To), "conflict").Inc()
		s.logger.DebugContext(ctx, "Payment already processed, transition skipped",
			"payment_id", t.PaymentID, "to_status", t.To, "actor", t.Actor)
		return false, nil
	case err != nil:
		paymentTransitionCounter.WithLabelValues(string(t.To), "error").Inc()
		return false, err
	}
	paymentTransitionCounter.WithLabelValues(string(t.To), "applied").Inc()
	s.logger.InfoContext(ctx, "Payment transitioned",
		"payment_id", t.PaymentID,
		"to_status", t.To,
		"source", t.Source,
		"actor", t.Actor,
		"action", t.Action,
	)

	if len(s.hooks) == 0 {
		return true, nil
	}
	p, err := s.payments.GetByID(ctx, t.PaymentID)
	if err != nil {
		s.logger.WarnContext(ctx, "Transition committed but payment reload failed, hooks skipped",
			"payment_id", t.PaymentID, "error", err)
		return true, nil
	}
	ev := TransitionEvent{
		Payment:   p,
		OldStatus: domain.StatusPending,
		NewStatus: t.To,
		Source:    t.Source,
		Action:    t.Action,
		Actor:     t.Actor,
		Notes:     t.Notes,
		SMSLogID:  t.SMSLogID,
		At:        t.At,
	}
	for _, h := range s.hooks {
		h.OnTransition(ctx, ev)
	}
	return true, nil
}

// appendActivity writes an audit note outside a transition. Failures are
// logged; the note never decides the outcome of the caller.
func (s *PaymentStore) appendActivity(ctx context.Context, e *domain.ActivityEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := s.activity.Append(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write activity entry",
			"action", e.Action, "payment_id", e.PaymentID, "error", err)
	}
}
