// Package memory is an in-process implementation of the payment service
// repositories. One mutex guards every read-check-write, which gives the
// same conditional-transition guarantee as the Postgres store. Used by tests
// and by single-node deployments with APP_STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

type txnKey struct {
	method domain.Method
	txnID  string
}

type state struct {
	mu         sync.Mutex
	payments   map[int64]*domain.Payment
	byTxn      map[txnKey]int64
	logs       map[int64]*domain.SMSLog
	activity   []*domain.ActivityEntry
	activityID int64
	settings   map[string]string
}

// Store bundles the repositories over shared state.
type Store struct {
	Payments *PaymentRepository
	SMSLogs  *SMSLogRepository
	Activity *ActivityRepository
	Settings *SettingsRepository
}

func NewStore() *Store {
	st := &state{
		payments: make(map[int64]*domain.Payment),
		byTxn:    make(map[txnKey]int64),
		logs:     make(map[int64]*domain.SMSLog),
		settings: make(map[string]string),
	}
	return &Store{
		Payments: &PaymentRepository{st: st},
		SMSLogs:  &SMSLogRepository{st: st},
		Activity: &ActivityRepository{st: st},
		Settings: &SettingsRepository{st: st},
	}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		c.VerifiedAt = &t
	}
	if p.MatchedSMSLogID != nil {
		id := *p.MatchedSMSLogID
		c.MatchedSMSLogID = &id
	}
	return &c
}

func cloneLog(l *domain.SMSLog) *domain.SMSLog {
	c := *l
	if l.MatchedPaymentID != nil {
		id := *l.MatchedPaymentID
		c.MatchedPaymentID = &id
	}
	if l.ProcessedAt != nil {
		t := *l.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// appendLocked requires st.mu held.
func (st *state) appendLocked(e *domain.ActivityEntry) {
	st.activityID++
	c := *e
	c.ID = st.activityID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	e.ID = c.ID
	st.activity = append(st.activity, &c)
}

type PaymentRepository struct{ st *state }

func (r *PaymentRepository) Create(_ context.Context, p *domain.Payment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := txnKey{p.Method, p.TransactionID}
	if existing, ok := r.st.byTxn[key]; ok {
		return &domain.DuplicateTransactionError{ExistingID: existing, Method: p.Method, TransactionID: p.TransactionID}
	}
	r.st.payments[p.ID] = clonePayment(p)
	r.st.byTxn[key] = p.ID
	return nil
}

func (r *PaymentRepository) GetByID(_ context.Context, id int64) (*domain.Payment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	p, ok := r.st.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (r *PaymentRepository) FindByTransaction(_ context.Context, method domain.Method, transactionID string) (*domain.Payment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	id, ok := r.st.byTxn[txnKey{method, domain.NormalizeTransactionID(transactionID)}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(r.st.payments[id]), nil
}

func (r *PaymentRepository) ListPending(_ context.Context, f domain.PendingFilter) ([]*domain.Payment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*domain.Payment
	for _, p := range r.st.payments {
		if p.Status != domain.StatusPending {
			continue
		}
		if f.Method != "" && p.Method != f.Method {
			continue
		}
		if f.TransactionID != "" && p.TransactionID != domain.NormalizeTransactionID(f.TransactionID) {
			continue
		}
		if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
			continue
		}
		if f.After != nil && !pastCursor(p, f.After) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func pastCursor(p *domain.Payment, c *domain.PendingCursor) bool {
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID > c.ID
	}
	return p.CreatedAt.After(c.CreatedAt)
}

// Transition applies t only while the payment is pending. The SMS link and
// the activity row are written under the same lock.
func (r *PaymentRepository) Transition(_ context.Context, t domain.Transition) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	p, ok := r.st.payments[t.PaymentID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != domain.StatusPending {
		return domain.ErrConflict
	}
	if t.SMSLogID != nil {
		if _, ok := r.st.logs[*t.SMSLogID]; !ok {
			return domain.ErrNotFound
		}
	}

	old := p.Status
	p.Status = t.To
	p.VerificationSource = t.Source
	p.UpdatedAt = t.At
	if t.Source != domain.SourceNone {
		at := t.At
		p.VerifiedBy = t.Actor
		p.VerifiedAt = &at
	}
	if t.Notes != "" {
		p.Notes = t.Notes
	}
	if t.SMSLogID != nil {
		logID := *t.SMSLogID
		p.MatchedSMSLogID = &logID

		l := r.st.logs[logID]
		pid, at := p.ID, t.At
		l.IsProcessed = true
		l.MatchedPaymentID = &pid
		l.ProcessedAt = &at
	}

	pid := p.ID
	r.st.appendLocked(&domain.ActivityEntry{
		PaymentID: &pid,
		SMSLogID:  t.SMSLogID,
		Action:    t.Action,
		OldStatus: old,
		NewStatus: t.To,
		Actor:     t.Actor,
		Notes:     t.Notes,
		CreatedAt: t.At,
	})
	return nil
}

type SMSLogRepository struct{ st *state }

func (r *SMSLogRepository) Create(_ context.Context, l *domain.SMSLog) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.logs[l.ID] = cloneLog(l)
	return nil
}

func (r *SMSLogRepository) GetByID(_ context.Context, id int64) (*domain.SMSLog, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	l, ok := r.st.logs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneLog(l), nil
}

func (r *SMSLogRepository) ListUnprocessed(_ context.Context, f domain.UnprocessedFilter) ([]*domain.SMSLog, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*domain.SMSLog
	for _, l := range r.st.logs {
		if l.IsProcessed || !l.IsPaymentLike {
			continue
		}
		if f.Method != "" && l.PaymentMethod != f.Method {
			continue
		}
		if f.TransactionID != "" && l.ParsedTransactionID != domain.NormalizeTransactionID(f.TransactionID) {
			continue
		}
		if !f.Since.IsZero() && l.ReceivedAt.Before(f.Since) {
			continue
		}
		out = append(out, cloneLog(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *SMSLogRepository) MarkProcessed(_ context.Context, logID, paymentID int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	l, ok := r.st.logs[logID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	l.IsProcessed = true
	l.MatchedPaymentID = &paymentID
	l.ProcessedAt = &now
	return nil
}

type ActivityRepository struct{ st *state }

func (r *ActivityRepository) Append(_ context.Context, e *domain.ActivityEntry) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.appendLocked(e)
	return nil
}

// ListByPayment returns entries in insertion order.
func (r *ActivityRepository) ListByPayment(_ context.Context, paymentID int64) ([]*domain.ActivityEntry, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	var out []*domain.ActivityEntry
	for _, e := range r.st.activity {
		if e.PaymentID != nil && *e.PaymentID == paymentID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

type SettingsRepository struct{ st *state }

func (r *SettingsRepository) Get(_ context.Context, key string) (string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	v, ok := r.st.settings[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *SettingsRepository) Put(_ context.Context, key, value string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.settings[key] = value
	return nil
}
