package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/parser"
)

// IngestRequest is the normalized shape of every inbound notification.
type IngestRequest struct {
	Source     domain.IngestSource
	Sender     string
	Message    string
	ReceivedAt time.Time
}

type IngestResult struct {
	Log    *domain.SMSLog
	Parsed parser.Result
	Match  MatchResult
}

// Gateway authenticates, parses and persists inbound SMS, then runs the
// immediate match. A failed match never fails the ingestion.
type Gateway struct {
	authenticators map[domain.IngestSource]auth.Authenticator
	parser         *parser.Parser
	logs           domain.SMSLogRepository
	reconciler     *Reconciler
	ids            domain.IDGenerator
	now            func() time.Time
	logger         *slog.Logger
}

func NewGateway(
	authenticators map[domain.IngestSource]auth.Authenticator,
	p *parser.Parser,
	logs domain.SMSLogRepository,
	reconciler *Reconciler,
	ids domain.IDGenerator,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		authenticators: authenticators,
		parser:         p,
		logs:           logs,
		reconciler:     reconciler,
		ids:            ids,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.With("component", "ingestion_gateway"),
	}
}

func (g *Gateway) Receive(ctx context.Context, req IngestRequest, cred auth.Credential) (*IngestResult, error) {
	authn, ok := g.authenticators[req.Source]
	if !ok {
		ingestRejectedCounter.WithLabelValues(string(req.Source), "auth").Inc()
		return nil, fmt.Errorf("%w: source %q not accepted", domain.ErrAuthentication, req.Source)
	}
	if err := authn.Authenticate(ctx, cred); err != nil {
		ingestRejectedCounter.WithLabelValues(string(req.Source), "auth").Inc()
		g.logger.WarnContext(ctx, "Ingestion authentication failed",
			"source", req.Source, "remote_addr", cred.RemoteAddr, "error", err)
		if errors.Is(err, domain.ErrAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("authenticate %s: %w", req.Source, err)
	}

	sender := strings.TrimSpace(req.Sender)
	message := strings.TrimSpace(req.Message)
	switch {
	case sender == "":
		ingestRejectedCounter.WithLabelValues(string(req.Source), "validation").Inc()
		return nil, domain.NewValidationError("sender", "required")
	case message == "":
		ingestRejectedCounter.WithLabelValues(string(req.Source), "validation").Inc()
		return nil, domain.NewValidationError("message", "required")
	}
	receivedAt := req.ReceivedAt.UTC()
	if req.ReceivedAt.IsZero() {
		receivedAt = g.now()
	}

	parsed := g.parser.Parse(message)
	l := &domain.SMSLog{
		ID:                  g.ids.NextID(),
		SenderNumber:        sender,
		MessageBody:         message,
		ParsedTransactionID: parsed.TransactionID,
		ParsedAmount:        parsed.Amount,
		ParsedSender:        parsed.SenderNumber,
		PaymentMethod:       parsed.Method,
		IsPaymentLike:       parsed.IsPaymentLike,
		Parser:              parsed.Parser,
		Source:              req.Source,
		ReceivedAt:          receivedAt,
	}
	if err := g.logs.Create(ctx, l); err != nil {
		ingestRejectedCounter.WithLabelValues(string(req.Source), "persistence").Inc()
		g.logger.ErrorContext(ctx, "Failed to persist SMS log", "source", req.Source, "error", err)
		return nil, err
	}
	smsIngestedCounter.WithLabelValues(string(req.Source), string(parsed.Method)).Inc()
	g.logger.InfoContext(ctx, "SMS ingested",
		"sms_log_id", l.ID,
		"source", req.Source,
		"method", parsed.Method,
		"transaction_id", parsed.TransactionID,
		"payment_like", parsed.IsPaymentLike,
		"parser", parsed.Parser,
	)

	match, err := g.reconciler.MatchSMSToPayments(ctx, l)
	if err != nil {
		g.logger.ErrorContext(ctx, "Immediate match failed, sweeper will retry",
			"sms_log_id", l.ID, "error", err)
	}
	if match.Outcome == OutcomeMatched || match.Outcome == OutcomeAmountMismatch {
		pid := match.PaymentID
		l.IsProcessed = true
		l.MatchedPaymentID = &pid
	}
	return &IngestResult{Log: l, Parsed: parsed, Match: match}, nil
}
