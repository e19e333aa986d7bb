package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/parser"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository/memory"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

const testForwarderKey = "forwarder-key"

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() int64 { return s.n.Add(1) }

type mockHook struct{ mock.Mock }

func (m *mockHook) OnTransition(ctx context.Context, ev TransitionEvent) { m.Called(ctx, ev) }

type mockProofStorage struct{ mock.Mock }

func (m *mockProofStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

type fixture struct {
	mem       *memory.Store
	store     *PaymentStore
	rec       *Reconciler
	gw        *Gateway
	sub       *SubmissionService
	sweeper   *Sweeper
	secrets   *WebhookSecrets
	clock     time.Time
	proofs    *mockProofStorage
	logger    *slog.Logger
	ids       *seqIDs
	tolerance decimal.Decimal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := vault.New("test-vault-secret")
	require.NoError(t, err)

	f := &fixture{
		mem:       memory.NewStore(),
		clock:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		proofs:    &mockProofStorage{},
		logger:    logger,
		ids:       &seqIDs{},
		tolerance: decimal.NewFromInt(1),
	}
	now := func() time.Time { return f.clock }

	f.store = NewPaymentStore(f.mem.Payments, f.mem.Activity, f.proofs, f.ids, "BDT", logger)
	f.store.now = now
	f.rec = NewReconciler(f.mem.Payments, f.mem.SMSLogs, f.store, ReconcilerConfig{
		AmountTolerance: f.tolerance,
		MatchWindow:     30 * time.Minute,
	}, logger)
	f.rec.now = now
	f.secrets = NewWebhookSecrets(f.mem.Settings, f.mem.Activity, v, logger)
	f.gw = NewGateway(map[domain.IngestSource]auth.Authenticator{
		domain.IngestForwarderApp: auth.StaticKey{Key: testForwarderKey},
		domain.IngestAPI:          auth.HMACBody{Secrets: f.secrets},
		domain.IngestManualEntry:  auth.MerchantIdentity{},
	}, parser.New(nil), f.mem.SMSLogs, f.rec, f.ids, logger)
	f.gw.now = now
	f.sub = NewSubmissionService(f.store, f.rec, logger)
	f.sweeper = NewSweeper(f.mem.Payments, f.store, f.rec, nil, SweeperConfig{
		PaymentTimeout: 24 * time.Hour,
		BatchSize:      50,
	}, logger)
	f.sweeper.now = now
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) submitBKash(t *testing.T, txn, amount, sender string) *domain.Payment {
	t.Helper()
	p, _, err := f.sub.Submit(context.Background(), domain.PaymentDraft{
		Method:        domain.MethodBKash,
		TransactionID: txn,
		Amount:        decimal.RequireFromString(amount),
		SenderNumber:  sender,
		OrderID:       "order-" + txn,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) ingest(t *testing.T, message string) *IngestResult {
	t.Helper()
	res, err := f.gw.Receive(context.Background(), IngestRequest{
		Source:  domain.IngestForwarderApp,
		Sender:  "bKash",
		Message: message,
	}, auth.Credential{APIKey: testForwarderKey})
	require.NoError(t, err)
	return res
}

func (f *fixture) activityActions(t *testing.T, paymentID int64) []string {
	t.Helper()
	entries, err := f.mem.Activity.ListByPayment(context.Background(), paymentID)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
