package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

const webhookSecretKey = "webhook_secret"

// Cipher is the part of the vault the service needs.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(blob string) string
}

// WebhookSecrets manages the HMAC secret for the api ingestion source. A
// rotation replaces the stored value, so the old secret stops working on the
// very next request.
type WebhookSecrets struct {
	settings domain.SettingsRepository
	activity domain.ActivityRepository
	cipher   Cipher
	logger   *slog.Logger
}

func NewWebhookSecrets(settings domain.SettingsRepository, activity domain.ActivityRepository, cipher Cipher, logger *slog.Logger) *WebhookSecrets {
	return &WebhookSecrets{
		settings: settings,
		activity: activity,
		cipher:   cipher,
		logger:   logger.With("component", "webhook_secrets"),
	}
}

// CurrentSecret returns "" when no secret was ever generated.
func (w *WebhookSecrets) CurrentSecret(ctx context.Context) (string, error) {
	stored, err := w.settings.Get(ctx, webhookSecretKey)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return w.cipher.Decrypt(stored), nil
}

// Rotate generates, stores and returns a new secret. The plaintext is only
// ever returned here.
func (w *WebhookSecrets) Rotate(ctx context.Context, actor string) (string, error) {
	secret, err := vault.GenerateToken(32)
	if err != nil {
		return "", err
	}
	enc, err := w.cipher.Encrypt(secret)
	if err != nil {
		return "", fmt.Errorf("encrypt webhook secret: %w", err)
	}
	if err := w.settings.Put(ctx, webhookSecretKey, enc); err != nil {
		return "", err
	}
	if err := w.activity.Append(ctx, &domain.ActivityEntry{
		Action:    domain.ActionSecretRotated,
		Actor:     actor,
		Notes:     "webhook secret rotated; previous secret revoked",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		w.logger.ErrorContext(ctx, "Failed to record secret rotation", "error", err)
	}
	w.logger.InfoContext(ctx, "Webhook secret rotated", "actor", actor)
	return secret, nil
}
