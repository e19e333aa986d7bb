package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// Inbound SMS arrive on sms.incoming.raw.<relay>, signed like the api source.
const (
	SubjectInboundSMS  = "sms.incoming.raw.*"
	InboundQueueGroup  = "payment-service"
	HeaderSignature    = "X-Signature"
	inboundSubjectRoot = "sms.incoming.raw."
)

var natsInboundSMSCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "payment_service",
		Name:      "nats_inbound_sms_total",
		Help:      "Inbound SMS received over NATS by result.",
	},
	[]string{"result"}, // accepted, rejected, invalid, error
)

// InboundSMS is the message body a relay publishes.
type InboundSMS struct {
	Sender     string    `json:"sender"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Ingestor is the slice of the ingestion gateway the consumer needs.
type Ingestor interface {
	Receive(ctx context.Context, req app.IngestRequest, cred auth.Credential) (*app.IngestResult, error)
}

// Subscriber is satisfied by *messagebroker.NATSClient.
type Subscriber interface {
	SubscribeToSubjectWithQueue(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) error
}

// SMSConsumer feeds SMS relayed over NATS into the ingestion gateway. The raw
// message bytes must carry an HMAC in the X-Signature header; the same
// webhook secret as the api source verifies them.
type SMSConsumer struct {
	subscriber Subscriber
	ingestor   Ingestor
	logger     *slog.Logger
}

func NewSMSConsumer(subscriber Subscriber, ingestor Ingestor, logger *slog.Logger) *SMSConsumer {
	return &SMSConsumer{subscriber: subscriber, ingestor: ingestor, logger: logger.With("component", "nats_sms_consumer")}
}

// Start blocks until ctx is cancelled.
func (c *SMSConsumer) Start(ctx context.Context, subject, queueGroup string) error {
	c.logger.InfoContext(ctx, "Starting NATS subscription", "subject", subject, "queue_group", queueGroup)
	err := c.subscriber.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "NATS subscription failed", "subject", subject, "error", err)
		return err
	}
	c.logger.InfoContext(ctx, "NATS subscription ended", "subject", subject)
	return nil
}

func (c *SMSConsumer) handle(ctx context.Context, msg *nats.Msg) {
	relay := strings.TrimPrefix(msg.Subject, inboundSubjectRoot)
	logger := c.logger.With("nats_subject", msg.Subject, "relay", relay)

	var in InboundSMS
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		natsInboundSMSCounter.WithLabelValues("invalid").Inc()
		logger.WarnContext(ctx, "Dropping undecodable inbound SMS", "error", err, "data_len", len(msg.Data))
		return
	}

	var signature string
	if msg.Header != nil {
		signature = msg.Header.Get(HeaderSignature)
	}
	res, err := c.ingestor.Receive(ctx, app.IngestRequest{
		Source:     domain.IngestAPI,
		Sender:     in.Sender,
		Message:    in.Message,
		ReceivedAt: in.ReceivedAt,
	}, auth.Credential{Signature: signature, Body: msg.Data})

	switch {
	case errors.Is(err, domain.ErrAuthentication):
		natsInboundSMSCounter.WithLabelValues("rejected").Inc()
		logger.WarnContext(ctx, "Inbound SMS failed authentication", "error", err)
	case errors.Is(err, domain.ErrValidation):
		natsInboundSMSCounter.WithLabelValues("invalid").Inc()
		logger.WarnContext(ctx, "Inbound SMS failed validation", "error", err)
	case err != nil:
		natsInboundSMSCounter.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "Inbound SMS ingestion failed", "error", err)
	default:
		natsInboundSMSCounter.WithLabelValues("accepted").Inc()
		logger.InfoContext(ctx, "Inbound SMS ingested",
			"sms_log_id", res.Log.ID, "match_outcome", res.Match.Outcome)
	}
}
