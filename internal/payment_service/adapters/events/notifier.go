package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/mailer"
)

// EmailNotifier mails the merchant about every decided payment and the
// customer, when an address was given, about the outcome of theirs. Mail
// goes out in the background until Wait is called; after that it is sent
// inline so nothing is lost during shutdown.
type EmailNotifier struct {
	sender        mailer.Sender
	merchantEmail string
	merchantName  string
	mu            sync.Mutex
	draining      bool
	wg            sync.WaitGroup
	logger        *slog.Logger
}

func NewEmailNotifier(sender mailer.Sender, merchantEmail, merchantName string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:        sender,
		merchantEmail: strings.TrimSpace(merchantEmail),
		merchantName:  merchantName,
		logger:        logger.With("component", "email_notifier"),
	}
}

func (n *EmailNotifier) OnTransition(ctx context.Context, ev app.TransitionEvent) {
	ctx = context.WithoutCancel(ctx)
	if n.merchantEmail != "" {
		subject, body := merchantMessage(ev)
		n.send(ctx, n.merchantEmail, subject, body, ev.Payment.ID)
	}
	if to := strings.TrimSpace(ev.Payment.CustomerEmail); to != "" {
		subject, body := customerMessage(ev, n.merchantName)
		n.send(ctx, to, subject, body, ev.Payment.ID)
	}
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body string, paymentID int64) {
	n.mu.Lock()
	if n.draining {
		n.mu.Unlock()
		n.deliver(ctx, to, subject, body, paymentID)
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		n.deliver(ctx, to, subject, body, paymentID)
	}()
}

func (n *EmailNotifier) deliver(ctx context.Context, to, subject, body string, paymentID int64) {
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		n.logger.ErrorContext(ctx, "Failed to send payment email", "payment_id", paymentID, "error", err)
	}
}

// Wait blocks until every queued email has been attempted. Transitions that
// commit afterwards send synchronously. Safe to call more than once.
func (n *EmailNotifier) Wait() {
	n.mu.Lock()
	n.draining = true
	n.mu.Unlock()
	n.wg.Wait()
}

func merchantMessage(ev app.TransitionEvent) (string, string) {
	p := ev.Payment
	var b strings.Builder
	fmt.Fprintf(&b, "Payment %d is now %s.\n\n", p.ID, ev.NewStatus)
	fmt.Fprintf(&b, "Method: %s\n", p.Method)
	fmt.Fprintf(&b, "Transaction ID: %s\n", p.TransactionID)
	fmt.Fprintf(&b, "Amount: %s %s\n", p.Amount.StringFixed(2), p.Currency)
	if p.OrderID != "" {
		fmt.Fprintf(&b, "Order: %s\n", p.OrderID)
	}
	fmt.Fprintf(&b, "Decided by: %s (%s)\n", ev.Actor, describeSource(ev))
	if ev.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", ev.Notes)
	}
	return fmt.Sprintf("[%s] Payment %s %s", strings.ToUpper(string(p.Method)), p.TransactionID, ev.NewStatus), b.String()
}

func customerMessage(ev app.TransitionEvent, merchantName string) (string, string) {
	p := ev.Payment
	amount := p.Amount.StringFixed(2) + " " + p.Currency
	if ev.NewStatus == domain.StatusConfirmed {
		return fmt.Sprintf("Your payment to %s is confirmed", merchantName),
			fmt.Sprintf("We received your payment of %s (transaction %s). Thank you.\n", amount, p.TransactionID)
	}
	return fmt.Sprintf("Your payment to %s could not be verified", merchantName),
		fmt.Sprintf("We could not verify your payment of %s (transaction %s). "+
			"Please contact %s if you believe this is a mistake.\n", amount, p.TransactionID, merchantName)
}

func describeSource(ev app.TransitionEvent) string {
	switch {
	case ev.Action == domain.ActionTimedOut:
		return "timed out"
	case ev.Source == domain.SourceNone:
		return "system"
	}
	return string(ev.Source)
}
