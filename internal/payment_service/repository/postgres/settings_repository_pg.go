package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

type PgSettingsRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

func NewPgSettingsRepository(db database.DBTX, logger *slog.Logger) *PgSettingsRepository {
	return &PgSettingsRepository{db: db, logger: logger.With("component", "settings_repository_pg")}
}

func (r *PgSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error reading setting", "error", err, "key", key)
		return "", domain.PersistenceError("get setting", err)
	}
	return value, nil
}

func (r *PgSettingsRepository) Put(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error writing setting", "error", err, "key", key)
		return domain.PersistenceError("put setting", err)
	}
	return nil
}
