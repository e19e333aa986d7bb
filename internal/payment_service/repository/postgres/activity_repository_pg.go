package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

type PgActivityRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

func NewPgActivityRepository(db database.DBTX, logger *slog.Logger) *PgActivityRepository {
	return &PgActivityRepository{db: db, logger: logger.With("component", "activity_repository_pg")}
}

func (r *PgActivityRepository) Append(ctx context.Context, e *domain.ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_activity (payment_id, sms_log_id, action, old_status, new_status, actor, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.PaymentID, e.SMSLogID, e.Action, string(e.OldStatus), string(e.NewStatus), e.Actor, e.Notes, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error appending activity", "error", err, "action", e.Action)
		return domain.PersistenceError("append activity", err)
	}
	return nil
}

// ListByPayment returns entries in insertion order.
func (r *PgActivityRepository) ListByPayment(ctx context.Context, paymentID int64) ([]*domain.ActivityEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, payment_id, sms_log_id, action, old_status, new_status, actor, notes, created_at
		FROM payment_activity
		WHERE payment_id = $1
		ORDER BY id ASC
	`, paymentID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing activity", "error", err, "payment_id", paymentID)
		return nil, domain.PersistenceError("list activity", err)
	}
	defer rows.Close()

	var out []*domain.ActivityEntry
	for rows.Next() {
		var (
			e                    domain.ActivityEntry
			pid, logID           sql.NullInt64
			oldStatus, newStatus string
		)
		if err := rows.Scan(&e.ID, &pid, &logID, &e.Action, &oldStatus, &newStatus, &e.Actor, &e.Notes, &e.CreatedAt); err != nil {
			return nil, domain.PersistenceError("scan activity", err)
		}
		if pid.Valid {
			v := pid.Int64
			e.PaymentID = &v
		}
		if logID.Valid {
			v := logID.Int64
			e.SMSLogID = &v
		}
		e.OldStatus = domain.Status(oldStatus)
		e.NewStatus = domain.Status(newStatus)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("list activity", err)
	}
	return out, nil
}
