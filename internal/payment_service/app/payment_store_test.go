package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

func TestPaymentStore_Submit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft domain.PaymentDraft
		field string
	}{
		{"unknown method", domain.PaymentDraft{Method: "paypal", TransactionID: "X1234567", Amount: decimal.NewFromInt(10), SenderNumber: "01712345678"}, "method"},
		{"empty transaction id", domain.PaymentDraft{Method: domain.MethodBKash, TransactionID: "  ", Amount: decimal.NewFromInt(10), SenderNumber: "01712345678"}, "transaction_id"},
		{"zero amount", domain.PaymentDraft{Method: domain.MethodBKash, TransactionID: "X1234567", Amount: decimal.Zero, SenderNumber: "01712345678"}, "amount"},
		{"negative amount", domain.PaymentDraft{Method: domain.MethodNagad, TransactionID: "X1234567", Amount: decimal.NewFromInt(-5), SenderNumber: "01712345678"}, "amount"},
		{"invalid phone", domain.PaymentDraft{Method: domain.MethodRocket, TransactionID: "1234567890", Amount: decimal.NewFromInt(10), SenderNumber: "12345"}, "sender_number"},
		{"three decimal places", domain.PaymentDraft{Method: domain.MethodBKash, TransactionID: "X1234567", Amount: decimal.RequireFromString("10.005")}, "amount"},
		{"amount beyond column range", domain.PaymentDraft{Method: domain.MethodBKash, TransactionID: "X1234567", Amount: decimal.New(1, 12)}, "amount"},
		{"bank without proof", domain.PaymentDraft{Method: domain.MethodBank, TransactionID: "BANKREF1", Amount: decimal.NewFromInt(10)}, "proof_image"},
		{"bank with unsupported proof", domain.PaymentDraft{Method: domain.MethodBank, TransactionID: "BANKREF1", Amount: decimal.NewFromInt(10),
			Proof: &domain.Attachment{Data: []byte("x"), ContentType: "text/html"}}, "proof_content_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.store.Submit(context.Background(), tt.draft)

			require.ErrorIs(t, err, domain.ErrValidation)
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPaymentStore_Submit_NormalizesFields(t *testing.T) {
	f := newFixture(t)

	p, err := f.store.Submit(context.Background(), domain.PaymentDraft{
		Method:        domain.MethodNagad,
		TransactionID: " ng7k2m9p4q ",
		Amount:        decimal.RequireFromString("250.50"),
		SenderNumber:  "+880 1712-345678",
	})
	require.NoError(t, err)

	assert.Equal(t, "NG7K2M9P4Q", p.TransactionID)
	assert.Equal(t, "01712345678", p.SenderNumber)
	assert.Equal(t, "BDT", p.Currency)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, f.clock, p.CreatedAt)
	assert.Equal(t, []string{domain.ActionSubmitted}, f.activityActions(t, p.ID))
}

func TestPaymentStore_Submit_SenderIsOptional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.submitBKash(t, "NOSENDER1", "1000.50", "")
	assert.Empty(t, p.SenderNumber)

	blank, err := f.store.Submit(ctx, domain.PaymentDraft{
		Method: domain.MethodUpay, TransactionID: "UP1234567", Amount: decimal.RequireFromString("10.50"), SenderNumber: "   ",
	})
	require.NoError(t, err)
	assert.Empty(t, blank.SenderNumber)

	// Only the transaction id and amount decide the match.
	f.advance(time.Minute)
	res := f.ingest(t, "You have received Tk 1,000.50 from 01712345678. TrxID NOSENDER1")
	assert.Equal(t, OutcomeMatched, res.Match.Outcome)

	got, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestPaymentStore_Submit_Uniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := domain.PaymentDraft{Method: domain.MethodBKash, TransactionID: "abc123xyz", Amount: decimal.NewFromInt(100), SenderNumber: "01712345678"}

	first, err := f.store.Submit(ctx, draft)
	require.NoError(t, err)

	draft.TransactionID = "ABC123XYZ"
	_, err = f.store.Submit(ctx, draft)
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)
	var dup *domain.DuplicateTransactionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.ExistingID)
}

func TestPaymentStore_Submit_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	draft := domain.PaymentDraft{Method: domain.MethodRocket, TransactionID: "9876543210", Amount: decimal.NewFromInt(100), SenderNumber: "01712345678"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.Submit(context.Background(), draft)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.Is(err, domain.ErrDuplicateTransaction) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 19, duplicates)
}

func TestPaymentStore_Submit_BankStoresProof(t *testing.T) {
	f := newFixture(t)
	data := []byte{0x89, 'P', 'N', 'G'}
	f.proofs.On("Put", mock.Anything, "bank-proofs/1.png", data, "image/png").Return(nil).Once()

	p, err := f.store.Submit(context.Background(), domain.PaymentDraft{
		Method:        domain.MethodBank,
		TransactionID: "bankref77",
		Amount:        decimal.NewFromInt(15000),
		SenderNumber:  "01712345678",
		Proof:         &domain.Attachment{Data: data, ContentType: "image/png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "bank-proofs/1.png", p.ProofObjectKey)
	assert.Empty(t, p.SenderNumber, "bank payments carry no sender phone")
	f.proofs.AssertExpectations(t)
}

func TestPaymentStore_Submit_BankWithoutStorage(t *testing.T) {
	f := newFixture(t)
	f.store.proofs = nil

	_, err := f.store.Submit(context.Background(), domain.PaymentDraft{
		Method:        domain.MethodBank,
		TransactionID: "bankref77",
		Amount:        decimal.NewFromInt(15000),
		Proof:         &domain.Attachment{Data: []byte("pdf"), ContentType: "application/pdf"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPaymentStore_ConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.submitBKash(t, "IDEMP0001", "100", "01712345678")

	ok, err := f.store.Confirm(ctx, p.ID, domain.SourceManual, nil, "merchant", "checked statement")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.store.Confirm(ctx, p.ID, domain.SourceManual, nil, "merchant", "again")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.store.Reject(ctx, p.ID, domain.SourceManual, "merchant", "too late")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := f.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Equal(t, "merchant", got.VerifiedBy)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, "checked statement", got.Notes)
}

func TestPaymentStore_ConcurrentConfirmAndReject(t *testing.T) {
	f := newFixture(t)
	p := f.submitBKash(t, "RACE00001", "100", "01712345678")

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if ok, err := f.store.Confirm(context.Background(), p.ID, domain.SourceSMS, nil, domain.ActorSystem, ""); err == nil && ok {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if ok, err := f.store.Reject(context.Background(), p.ID, domain.SourceManual, "merchant", ""); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	actions := f.activityActions(t, p.ID)
	assert.Len(t, actions, 2, "submitted plus exactly one transition")
}

func TestPaymentStore_HooksFireOnWinningTransitionOnly(t *testing.T) {
	f := newFixture(t)
	hook := &mockHook{}
	f.store.AddHook(hook)
	p := f.submitBKash(t, "HOOK00001", "100", "01712345678")

	hook.On("OnTransition", mock.Anything, mock.MatchedBy(func(ev TransitionEvent) bool {
		return ev.Payment.ID == p.ID &&
			ev.OldStatus == domain.StatusPending &&
			ev.NewStatus == domain.StatusFailed &&
			ev.Source == domain.SourceManual &&
			ev.Payment.OrderID == "order-HOOK00001"
	})).Once()

	ok, err := f.store.ManualVerify(context.Background(), p.ID, ActionReject, "no such transfer", "merchant")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.store.ManualVerify(context.Background(), p.ID, ActionConfirm, "", "merchant")
	require.NoError(t, err)
	assert.False(t, ok)

	hook.AssertExpectations(t)
	hook.AssertNumberOfCalls(t, "OnTransition", 1)
}

func TestPaymentStore_ManualVerifyErrors(t *testing.T) {
	f := newFixture(t)
	p := f.submitBKash(t, "MANUAL001", "100", "01712345678")

	_, err := f.store.ManualVerify(context.Background(), p.ID, "approve", "", "merchant")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.store.ManualVerify(context.Background(), 424242, ActionConfirm, "", "merchant")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentStore_Activity(t *testing.T) {
	f := newFixture(t)
	p := f.submitBKash(t, "ACTIV0001", "100", "01712345678")
	_, err := f.store.ManualVerify(context.Background(), p.ID, ActionConfirm, "ok", "merchant")
	require.NoError(t, err)

	entries, err := f.store.Activity(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionConfirmed, entries[1].Action)
	assert.Equal(t, "merchant", entries[1].Actor)

	_, err = f.store.Activity(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
