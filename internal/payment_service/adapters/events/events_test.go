package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func confirmedEvent(orderID, email string) app.TransitionEvent {
	logID := int64(77)
	return app.TransitionEvent{
		Payment: &domain.Payment{
			ID:            42,
			Method:        domain.MethodBKash,
			TransactionID: "ABC123XYZ",
			SenderNumber:  "01712345678",
			Amount:        decimal.RequireFromString("1000"),
			Currency:      "BDT",
			Status:        domain.StatusConfirmed,
			OrderID:       orderID,
			CustomerEmail: email,
		},
		OldStatus: domain.StatusPending,
		NewStatus: domain.StatusConfirmed,
		Source:    domain.SourceSMS,
		Action:    domain.ActionConfirmed,
		Actor:     domain.ActorSystem,
		SMSLogID:  &logID,
		At:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNATSHook_ConfirmedWithOrder(t *testing.T) {
	pub := &mockPublisher{}
	var bodies [][]byte
	capture := func(args mock.Arguments) { bodies = append(bodies, args.Get(2).([]byte)) }
	pub.On("Publish", mock.Anything, SubjectPaymentConfirmedV1, mock.Anything).Return(nil).Run(capture).Once()
	pub.On("Publish", mock.Anything, SubjectOrderPaidV1, mock.Anything).Return(nil).Run(capture).Once()

	NewNATSHook(pub, testLogger()).OnTransition(context.Background(), confirmedEvent("order-9", ""))

	pub.AssertExpectations(t)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])

	var ev PaymentEvent
	require.NoError(t, json.Unmarshal(bodies[0], &ev))
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, int64(42), ev.PaymentID)
	assert.Equal(t, "order-9", ev.OrderID)
	assert.Equal(t, "confirmed", ev.Status)
	assert.Equal(t, "sms", ev.VerificationSource)
	require.NotNil(t, ev.SMSLogID)
	assert.Equal(t, int64(77), *ev.SMSLogID)
	assert.NotContains(t, string(bodies[0]), "01712345678")
}

func TestNATSHook_TimeoutWithoutOrder(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, SubjectPaymentFailedV1, mock.Anything).Return(nil).Once()

	ev := confirmedEvent("", "")
	ev.NewStatus, ev.Source, ev.Action, ev.Actor, ev.SMSLogID = domain.StatusFailed, domain.SourceNone, domain.ActionTimedOut, domain.ActorSweeper, nil
	NewNATSHook(pub, testLogger()).OnTransition(context.Background(), ev)

	pub.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, SubjectOrderFailedV1, mock.Anything)
}

func TestNATSHook_PublishErrorIsSwallowed(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, SubjectPaymentFailedV1, mock.Anything).Return(errors.New("nats: connection closed")).Once()
	pub.On("Publish", mock.Anything, SubjectOrderFailedV1, mock.Anything).Return(nil).Once()

	ev := confirmedEvent("order-9", "")
	ev.NewStatus, ev.Source, ev.Action = domain.StatusFailed, domain.SourceManual, domain.ActionRejected

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { NewNATSHook(pub, testLogger()).OnTransition(ctx, ev) })
	pub.AssertExpectations(t)
}

func TestEmailNotifier_MerchantAndCustomer(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "shop@example.com",
		"[BKASH] Payment ABC123XYZ confirmed",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "1000.00 BDT") && strings.Contains(body, "Order: order-9")
		})).Return(nil).Once()
	sender.On("Send", mock.Anything, "buyer@example.com",
		"Your payment to Demo Shop is confirmed", mock.Anything).Return(nil).Once()

	n := NewEmailNotifier(sender, "shop@example.com", "Demo Shop", testLogger())
	n.OnTransition(context.Background(), confirmedEvent("order-9", "buyer@example.com"))
	n.Wait()

	sender.AssertExpectations(t)
}

func TestEmailNotifier_NoAddresses(t *testing.T) {
	sender := &mockSender{}
	n := NewEmailNotifier(sender, " ", "Demo Shop", testLogger())
	n.OnTransition(context.Background(), confirmedEvent("", ""))
	n.Wait()
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailNotifier_SurvivesCancelledRequest(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		"buyer@example.com", "Your payment to Demo Shop could not be verified", mock.Anything).
		Return(errors.New("smtp: 421")).Once()

	ev := confirmedEvent("", "buyer@example.com")
	ev.NewStatus, ev.Action = domain.StatusFailed, domain.ActionRejected

	ctx, cancel := context.WithCancel(context.Background())
	n := NewEmailNotifier(sender, "", "Demo Shop", testLogger())
	n.OnTransition(ctx, ev)
	cancel()
	n.Wait()

	sender.AssertExpectations(t)
}

func TestEmailNotifier_SendsInlineOnceDraining(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "merchant@example.com", mock.Anything, mock.Anything).Return(nil)
	n := NewEmailNotifier(sender, "merchant@example.com", "Demo Shop", testLogger())

	// Transitions racing shutdown are either waited for or sent inline.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.OnTransition(context.Background(), confirmedEvent("", ""))
		}()
	}
	n.Wait()
	wg.Wait()
	n.Wait()
	sender.AssertNumberOfCalls(t, "Send", 20)

	n.OnTransition(context.Background(), confirmedEvent("", ""))
	sender.AssertNumberOfCalls(t, "Send", 21)
}
