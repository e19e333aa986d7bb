package http

import (
	"context"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

type SMSIngestor interface {
	Receive(ctx context.Context, req app.IngestRequest, cred auth.Credential) (*app.IngestResult, error)
}

type PaymentSubmitter interface {
	Submit(ctx context.Context, draft domain.PaymentDraft) (*domain.Payment, app.MatchResult, error)
}

type PaymentManager interface {
	Get(ctx context.Context, id int64) (*domain.Payment, error)
	Activity(ctx context.Context, paymentID int64) ([]*domain.ActivityEntry, error)
	ManualVerify(ctx context.Context, id int64, action, notes, actor string) (bool, error)
}

type SecretRotator interface {
	Rotate(ctx context.Context, actor string) (string, error)
}

type SweepRunner interface {
	Run(ctx context.Context) (*app.SweepReport, error)
}

// Handler serves the payment service REST API.
type Handler struct {
	ingestor  SMSIngestor
	submitter PaymentSubmitter
	payments  PaymentManager
	secrets   SecretRotator
	sweeper   SweepRunner
	validate  *validator.Validate
	logger    *slog.Logger
}

type HandlerDeps struct {
	Ingestor  SMSIngestor
	Submitter PaymentSubmitter
	Payments  PaymentManager
	Secrets   SecretRotator
	Sweeper   SweepRunner
	Validate  *validator.Validate
}

func NewHandler(deps HandlerDeps, logger *slog.Logger) *Handler {
	v := deps.Validate
	if v == nil {
		v = validator.New()
	}
	v.RegisterTagNameFunc(jsonFieldName)
	return &Handler{
		ingestor:  deps.Ingestor,
		submitter: deps.Submitter,
		payments:  deps.Payments,
		secrets:   deps.Secrets,
		sweeper:   deps.Sweeper,
		validate:  v,
		logger:    logger.With("component", "http_handler"),
	}
}

// jsonFieldName makes validation errors name the wire field.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
