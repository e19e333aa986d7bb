package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
	"github.com/mfsreconcile/golang_services/internal/platform/logger"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMask(t *testing.T) {
	out, err := run(t, "", "mask", "01712345678")
	require.NoError(t, err)
	assert.Equal(t, "017****5678\n", out)
}

func TestParse_JSON(t *testing.T) {
	out, err := run(t, "", "parse", "--json", "You have received Tk 1,000.00 from 01712345678. TrxID ABC123XYZ")
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bkash", got.Method)
	assert.Equal(t, "ABC123XYZ", got.TransactionID)
	assert.Equal(t, "1000.00", got.Amount)
	assert.True(t, got.PaymentLike)
}

func TestParse_Stdin(t *testing.T) {
	out, err := run(t, "Your OTP is 123456\n", "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "Payment-like:   false")

	_, err = run(t, "  ", "parse")
	assert.ErrorContains(t, err, "no message given")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Setenv("APP_VAULT_SECRET", "cli-test-secret")

	enc, err := run(t, "", "encrypt", "01712345678")
	require.NoError(t, err)
	enc = strings.TrimSpace(enc)
	assert.NotEqual(t, "01712345678", enc)

	dec, err := run(t, "", "decrypt", enc)
	require.NoError(t, err)
	assert.Equal(t, "01712345678\n", dec)
}

func TestToken(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "cli-jwt")
	t.Setenv("APP_JWT_ISSUER", "cli-issuer")

	out, err := run(t, "", "token", "--merchant", "shop-7")
	require.NoError(t, err)

	merchant, err := auth.ParseMerchantToken("cli-jwt", "cli-issuer", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "shop-7", merchant)
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() int64 { return s.n.Add(1) }

type mockHook struct{ mock.Mock }

func (m *mockHook) OnTransition(ctx context.Context, ev app.TransitionEvent) { m.Called(ctx, ev) }

func TestSweep_FiresTransitionHooks(t *testing.T) {
	ctx := context.Background()
	repos, err := repository.Open(ctx, repository.DriverMemory, "", nil, logger.Discard())
	require.NoError(t, err)
	defer repos.Close()

	created := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repos.Payments.Create(ctx, &domain.Payment{
		ID: 1, Method: domain.MethodBKash, TransactionID: "STALE0001", Amount: decimal.NewFromInt(500),
		Currency: "BDT", Status: domain.StatusPending, OrderID: "order-1", CreatedAt: created, UpdatedAt: created,
	}))

	hook := &mockHook{}
	hook.On("OnTransition", mock.Anything, mock.MatchedBy(func(ev app.TransitionEvent) bool {
		return ev.Payment.ID == 1 && ev.Action == domain.ActionTimedOut && ev.Payment.OrderID == "order-1"
	})).Once()

	e := &env{
		cfg:   &config.Config{PaymentTimeout: 24 * time.Hour, SweepBatchSize: 10, DefaultCurrency: "BDT"},
		repos: repos,
	}
	report, err := newSweeper(e, &seqIDs{}, nil, logger.Discard(), hook).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TimedOut)
	hook.AssertExpectations(t)
}
