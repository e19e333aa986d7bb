package app

import (
	"context"
	"log/slog"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// SubmissionService is the customer entry point: store the payment, then try
// the opposite-direction match against SMS that arrived first.
type SubmissionService struct {
	store      *PaymentStore
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewSubmissionService(store *PaymentStore, reconciler *Reconciler, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		store:      store,
		reconciler: reconciler,
		logger:     logger.With("component", "submission_service"),
	}
}

func (s *SubmissionService) Submit(ctx context.Context, draft domain.PaymentDraft) (*domain.Payment, MatchResult, error) {
	p, err := s.store.Submit(ctx, draft)
	if err != nil {
		return nil, MatchResult{}, err
	}

	match, err := s.reconciler.MatchPaymentToRecentSMS(ctx, p)
	if err != nil {
		s.logger.ErrorContext(ctx, "Immediate match failed, sweeper will retry", "payment_id", p.ID, "error", err)
		return p, match, nil
	}
	if match.Outcome == OutcomeMatched {
		if fresh, err := s.store.Get(ctx, p.ID); err == nil {
			p = fresh
		}
	}
	return p, match, nil
}
