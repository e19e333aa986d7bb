package events

import (
	"log/slog"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
	"github.com/mfsreconcile/golang_services/internal/platform/mailer"
	"github.com/mfsreconcile/golang_services/internal/platform/messagebroker"
)

// Sinks are the configured outbound side effects of a committed transition.
// Every process that can decide a payment attaches the same set.
type Sinks struct {
	NATS     *messagebroker.NATSClient
	Notifier *EmailNotifier
	hooks    []app.TransitionHook
}

// ConnectSinks connects to NATS when NATS_URL is set and prepares the SMTP
// notifier when SMTP_HOST is set. Neither is required.
func ConnectSinks(cfg *config.Config, clientName string, logger *slog.Logger) (*Sinks, error) {
	s := &Sinks{}
	if cfg.NATSURL != "" {
		nc, err := messagebroker.NewNATSClient(cfg.NATSURL, logger, clientName)
		if err != nil {
			return nil, err
		}
		s.NATS = nc
		s.hooks = append(s.hooks, NewNATSHook(nc, logger))
		logger.Info("Successfully connected to NATS")
	}
	if cfg.SMTPHost != "" {
		smtp := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPSender, logger)
		s.Notifier = NewEmailNotifier(smtp, cfg.MerchantEmail, cfg.MerchantName, logger)
		s.hooks = append(s.hooks, s.Notifier)
	}
	if len(s.hooks) == 0 {
		logger.Warn("No transition sinks configured (APP_NATS_URL, APP_SMTP_HOST); order updates and emails are off")
	}
	return s, nil
}

func (s *Sinks) Hooks() []app.TransitionHook {
	return s.hooks
}

// Attach registers every sink on store.
func (s *Sinks) Attach(store *app.PaymentStore) {
	for _, h := range s.hooks {
		store.AddHook(h)
	}
}

// Close flushes pending email and then drops the NATS connection, which
// drains buffered publishes.
func (s *Sinks) Close() {
	if s.Notifier != nil {
		s.Notifier.Wait()
	}
	if s.NATS != nil {
		s.NATS.Close()
	}
}
