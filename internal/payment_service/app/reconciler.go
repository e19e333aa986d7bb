package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

// Outcome of one reconciliation attempt. Mismatches are outcomes, not errors.
type Outcome string

const (
	OutcomeMatched          Outcome = "matched"
	OutcomeNoCandidate      Outcome = "no_candidate"
	OutcomeSenderMismatch   Outcome = "sender_mismatch"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotEligible      Outcome = "not_eligible"
	OutcomeError            Outcome = "error"
)

type MatchResult struct {
	Outcome   Outcome
	PaymentID int64
	SMSLogID  int64
}

func (r MatchResult) Matched() bool { return r.Outcome == OutcomeMatched }

type verdict int

const (
	verdictMatch verdict = iota
	verdictTxnMismatch
	verdictSenderMismatch
	verdictAmountMismatch
)

// ReconcilerConfig holds the matching tolerances.
type ReconcilerConfig struct {
	AmountTolerance decimal.Decimal
	MatchWindow     time.Duration // immediate paths only; the sweeper is unbounded
	CandidateLimit  int
}

// Reconciler pairs SMS logs with pending payments in either direction. Both
// directions use evaluate and the same mismatch policy:
//   - sender mismatch: audit note, log stays unprocessed, try the next candidate
//   - amount mismatch: audit note, log marked processed and linked, no confirm
type Reconciler struct {
	payments domain.PaymentRepository
	smsLogs  domain.SMSLogRepository
	store    *PaymentStore
	cfg      ReconcilerConfig
	now      func() time.Time
	logger   *slog.Logger
}

func NewReconciler(
	payments domain.PaymentRepository,
	smsLogs domain.SMSLogRepository,
	store *PaymentStore,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 100
	}
	return &Reconciler{
		payments: payments,
		smsLogs:  smsLogs,
		store:    store,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "reconciler"),
	}
}

// evaluate is the single match predicate. Method equality is established by
// the candidate query.
func evaluate(p *domain.Payment, l *domain.SMSLog, tolerance decimal.Decimal) verdict {
	if l.ParsedTransactionID == "" || !strings.EqualFold(p.TransactionID, l.ParsedTransactionID) {
		return verdictTxnMismatch
	}
	if p.SenderNumber != "" && l.ParsedSender != "" &&
		domain.NormalizePhone(p.SenderNumber) != domain.NormalizePhone(l.ParsedSender) {
		return verdictSenderMismatch
	}
	if l.ParsedAmount.Valid && l.ParsedAmount.Decimal.Sub(p.Amount).Abs().GreaterThan(tolerance) {
		return verdictAmountMismatch
	}
	return verdictMatch
}

func eligibleLog(l *domain.SMSLog) bool {
	return l.PaymentMethod.IsMFS() && l.IsPaymentLike && l.ParsedTransactionID != "" && !l.IsProcessed
}

func eligiblePayment(p *domain.Payment) bool {
	return p.Method.IsMFS() && p.Status == domain.StatusPending
}

// MatchSMSToPayments looks for the pending payment a freshly ingested SMS
// confirms.
func (r *Reconciler) MatchSMSToPayments(ctx context.Context, l *domain.SMSLog) (MatchResult, error) {
	res, err := r.matchSMS(ctx, l)
	matchOutcomeCounter.WithLabelValues("sms", string(res.Outcome)).Inc()
	return res, err
}

func (r *Reconciler) matchSMS(ctx context.Context, l *domain.SMSLog) (MatchResult, error) {
	res := MatchResult{Outcome: OutcomeNotEligible, SMSLogID: l.ID}
	if !eligibleLog(l) {
		return res, nil
	}

	candidates, err := r.payments.ListPending(ctx, domain.PendingFilter{
		Method:        l.PaymentMethod,
		TransactionID: l.ParsedTransactionID,
		Since:         r.now().Add(-r.cfg.MatchWindow),
		Limit:         r.cfg.CandidateLimit,
	})
	if err != nil {
		res.Outcome = OutcomeError
		return res, fmt.Errorf("list pending payments: %w", err)
	}

	res.Outcome = OutcomeNoCandidate
	for _, p := range candidates {
		out, done, err := r.apply(ctx, p, l, domain.SourceSMS, domain.ActorSystem)
		if err != nil {
			return MatchResult{Outcome: OutcomeError, PaymentID: p.ID, SMSLogID: l.ID}, err
		}
		if out != OutcomeNoCandidate {
			res = MatchResult{Outcome: out, PaymentID: p.ID, SMSLogID: l.ID}
		}
		if done {
			return res, nil
		}
	}
	if res.Outcome == OutcomeNoCandidate {
		return r.classifyLateSMS(ctx, l, res)
	}
	return res, nil
}

// classifyLateSMS distinguishes an SMS whose payment was already decided
// (a replayed or duplicated notification) from one with no payment at all.
func (r *Reconciler) classifyLateSMS(ctx context.Context, l *domain.SMSLog, res MatchResult) (MatchResult, error) {
	p, err := r.payments.FindByTransaction(ctx, l.PaymentMethod, l.ParsedTransactionID)
	if err != nil {
		// ErrNotFound is the common case; anything else only loses detail.
		return res, nil
	}
	if p.Status != domain.StatusPending {
		r.logger.InfoContext(ctx, "SMS refers to an already processed payment",
			"payment_id", p.ID, "sms_log_id", l.ID, "status", p.Status)
		return MatchResult{Outcome: OutcomeAlreadyProcessed, PaymentID: p.ID, SMSLogID: l.ID}, nil
	}
	return res, nil
}

// MatchPaymentToRecentSMS looks for an already received SMS that confirms a
// freshly submitted payment.
func (r *Reconciler) MatchPaymentToRecentSMS(ctx context.Context, p *domain.Payment) (MatchResult, error) {
	since := r.now().Add(-r.cfg.MatchWindow)
	res, err := r.matchPayment(ctx, p, since, domain.SourceSMS, domain.ActorSystem)
	matchOutcomeCounter.WithLabelValues("payment", string(res.Outcome)).Inc()
	return res, err
}

// matchPayment is shared with the sweeper, which passes a zero since.
func (r *Reconciler) matchPayment(ctx context.Context, p *domain.Payment, since time.Time, source domain.VerificationSource, actor string) (MatchResult, error) {
	res := MatchResult{Outcome: OutcomeNotEligible, PaymentID: p.ID}
	if !eligiblePayment(p) {
		return res, nil
	}

	// Narrowed by transaction id so a match never depends on CandidateLimit.
	logs, err := r.smsLogs.ListUnprocessed(ctx, domain.UnprocessedFilter{
		Method:        p.Method,
		TransactionID: p.TransactionID,
		Since:         since,
		Limit:         r.cfg.CandidateLimit,
	})
	if err != nil {
		res.Outcome = OutcomeError
		return res, fmt.Errorf("list unprocessed sms logs: %w", err)
	}

	res.Outcome = OutcomeNoCandidate
	for _, l := range logs {
		if !eligibleLog(l) {
			continue
		}
		out, done, err := r.apply(ctx, p, l, source, actor)
		if err != nil {
			return MatchResult{Outcome: OutcomeError, PaymentID: p.ID, SMSLogID: l.ID}, err
		}
		if out != OutcomeNoCandidate {
			res = MatchResult{Outcome: out, PaymentID: p.ID, SMSLogID: l.ID}
		}
		if done {
			return res, nil
		}
	}
	return res, nil
}

// apply evaluates one pair and performs the side effects of the verdict.
// done reports whether the caller should stop scanning candidates.
func (r *Reconciler) apply(ctx context.Context, p *domain.Payment, l *domain.SMSLog, source domain.VerificationSource, actor string) (Outcome, bool, error) {
	switch evaluate(p, l, r.cfg.AmountTolerance) {
	case verdictTxnMismatch:
		return OutcomeNoCandidate, false, nil

	case verdictSenderMismatch:
		r.logger.InfoContext(ctx, "Sender mismatch, payment left pending",
			"payment_id", p.ID, "sms_log_id", l.ID,
			"payment_sender", vault.MaskPhone(p.SenderNumber),
			"sms_sender", vault.MaskPhone(l.ParsedSender),
		)
		r.auditNote(ctx, p, l, domain.ActionSenderMismatch, actor, fmt.Sprintf(
			"sender mismatch: payment sender %s, SMS sender %s",
			vault.MaskPhone(p.SenderNumber), vault.MaskPhone(l.ParsedSender)))
		return OutcomeSenderMismatch, false, nil

	case verdictAmountMismatch:
		if err := r.smsLogs.MarkProcessed(ctx, l.ID, p.ID); err != nil {
			return OutcomeError, true, fmt.Errorf("mark sms log %d processed: %w", l.ID, err)
		}
		r.logger.InfoContext(ctx, "Amount mismatch, SMS consumed without confirming",
			"payment_id", p.ID, "sms_log_id", l.ID,
			"payment_amount", p.Amount.String(), "sms_amount", l.ParsedAmount.Decimal.String(),
		)
		r.auditNote(ctx, p, l, domain.ActionAmountMismatch, actor, fmt.Sprintf(
			"amount mismatch: payment %s %s, SMS %s (tolerance %s)",
			p.Amount.StringFixed(2), p.Currency, l.ParsedAmount.Decimal.StringFixed(2), r.cfg.AmountTolerance.String()))
		return OutcomeAmountMismatch, true, nil
	}

	logID := l.ID
	ok, err := r.store.Confirm(ctx, p.ID, source, &logID, actor,
		fmt.Sprintf("matched SMS log %d (TrxID %s)", l.ID, l.ParsedTransactionID))
	if err != nil {
		return OutcomeError, true, err
	}
	if !ok {
		return OutcomeAlreadyProcessed, true, nil
	}
	return OutcomeMatched, true, nil
}

func (r *Reconciler) auditNote(ctx context.Context, p *domain.Payment, l *domain.SMSLog, action, actor, notes string) {
	pid, lid := p.ID, l.ID
	r.store.appendActivity(ctx, &domain.ActivityEntry{
		PaymentID: &pid,
		SMSLogID:  &lid,
		Action:    action,
		OldStatus: p.Status,
		NewStatus: p.Status,
		Actor:     actor,
		Notes:     notes,
	})
}
