package app

import (
	"context"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// TransitionEvent describes a winning transition out of pending. Payment is
// the state after the write.
type TransitionEvent struct {
	Payment   *domain.Payment
	OldStatus domain.Status
	NewStatus domain.Status
	Source    domain.VerificationSource
	Action    string
	Actor     string
	Notes     string
	SMSLogID  *int64
	At        time.Time
}

// TransitionHook receives one-way notifications after a transition commits.
// Hooks must not fail the transition; they log their own errors.
type TransitionHook interface {
	OnTransition(ctx context.Context, ev TransitionEvent)
}

// HookFunc adapts a function to TransitionHook.
type HookFunc func(ctx context.Context, ev TransitionEvent)

func (f HookFunc) OnTransition(ctx context.Context, ev TransitionEvent) { f(ctx, ev) }
