package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/lock"
)

const sweepLockName = "payment_sweep"

// ErrSweepInProgress is returned when this process or another replica is
// already sweeping.
var ErrSweepInProgress = errors.New("sweep already in progress")

type SweepReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Scanned   int           `json:"scanned"`
	TimedOut  int           `json:"timed_out"`
	Matched   int           `json:"matched"`
	Mismatch  int           `json:"mismatched"`
	Unmatched int           `json:"unmatched"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
}

type SweeperConfig struct {
	PaymentTimeout time.Duration
	BatchSize      int
	LockTTL        time.Duration
}

// Sweeper is the backstop for SMS and payments that arrived in the wrong
// order. It walks pending payments oldest first, failing those past the
// timeout and re-running the match for the rest.
type Sweeper struct {
	payments   domain.PaymentRepository
	store      *PaymentStore
	reconciler *Reconciler
	locker     lock.Locker
	cfg        SweeperConfig
	running    atomic.Bool
	now        func() time.Time
	logger     *slog.Logger
}

func NewSweeper(
	payments domain.PaymentRepository,
	store *PaymentStore,
	reconciler *Reconciler,
	locker lock.Locker,
	cfg SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	if locker == nil {
		locker = lock.Noop{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &Sweeper{
		payments:   payments,
		store:      store,
		reconciler: reconciler,
		locker:     locker,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "sweeper"),
	}
}

// Run performs one sweep. Cancelling ctx stops before the next payment; the
// one in progress is finished.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	release, err := s.locker.Acquire(ctx, sweepLockName, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.InfoContext(ctx, "Another replica holds the sweep lock, skipping")
		return nil, ErrSweepInProgress
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "Failed to release sweep lock", "error", err)
		}
	}()

	report := &SweepReport{StartedAt: s.now()}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		sweepDurationHist.Observe(report.Duration.Seconds())
	}()

	if err := s.sweepAll(ctx, report); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Sweep finished",
		"scanned", report.Scanned,
		"timed_out", report.TimedOut,
		"matched", report.Matched,
		"mismatched", report.Mismatch,
		"errors", report.Errors,
	)
	return report, nil
}

// sweepAll pages through the whole pending backlog in BatchSize pages,
// keyed on (created_at, id). Payments created after the sweep started are
// left for the next run. Only a failure on the first page is returned.
func (s *Sweeper) sweepAll(ctx context.Context, report *SweepReport) error {
	var after *domain.PendingCursor
	for {
		page, err := s.payments.ListPending(ctx, domain.PendingFilter{After: after, Limit: s.cfg.BatchSize})
		if err != nil {
			if after == nil {
				return err
			}
			report.Errors++
			s.logger.ErrorContext(ctx, "Failed to list next pending page", "scanned", report.Scanned, "error", err)
			return nil
		}

		for _, p := range page {
			if ctx.Err() != nil {
				s.logger.InfoContext(ctx, "Sweep interrupted", "scanned", report.Scanned)
				return nil
			}
			if p.CreatedAt.After(report.StartedAt) {
				return nil
			}
			report.Scanned++
			s.sweepOne(ctx, p, report)
		}
		if len(page) < s.cfg.BatchSize {
			return nil
		}
		after = domain.CursorOf(page[len(page)-1])
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, p *domain.Payment, report *SweepReport) {
	if age := s.now().Sub(p.CreatedAt); age > s.cfg.PaymentTimeout {
		ok, err := s.store.Timeout(ctx, p.ID, age)
		switch {
		case err != nil:
			report.Errors++
			sweepItemsCounter.WithLabelValues("error").Inc()
			s.logger.ErrorContext(ctx, "Failed to time out payment", "payment_id", p.ID, "error", err)
		case ok:
			report.TimedOut++
			sweepItemsCounter.WithLabelValues("timed_out").Inc()
		default:
			report.Skipped++
			sweepItemsCounter.WithLabelValues("already_processed").Inc()
		}
		return
	}

	if !p.Method.IsMFS() {
		report.Skipped++
		sweepItemsCounter.WithLabelValues("not_eligible").Inc()
		return
	}

	res, err := s.reconciler.matchPayment(ctx, p, time.Time{}, domain.SourceAuto, domain.ActorSweeper)
	matchOutcomeCounter.WithLabelValues("sweep", string(res.Outcome)).Inc()
	if err != nil {
		report.Errors++
		sweepItemsCounter.WithLabelValues("error").Inc()
		s.logger.ErrorContext(ctx, "Sweep match failed", "payment_id", p.ID, "error", err)
		return
	}
	sweepItemsCounter.WithLabelValues(string(res.Outcome)).Inc()
	switch res.Outcome {
	case OutcomeMatched:
		report.Matched++
	case OutcomeSenderMismatch, OutcomeAmountMismatch:
		report.Mismatch++
	case OutcomeAlreadyProcessed, OutcomeNotEligible:
		report.Skipped++
	default:
		report.Unmatched++
	}
}

// Start runs a sweep every interval until ctx is cancelled. An overlapping
// tick is skipped.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	s.logger.InfoContext(ctx, "Sweeper started", "interval", interval, "timeout", s.cfg.PaymentTimeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Sweeper stopping")
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.logger.ErrorContext(ctx, "Sweep failed", "error", err)
			}
		}
	}
}
