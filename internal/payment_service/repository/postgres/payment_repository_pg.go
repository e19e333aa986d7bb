package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

const uniqueTransactionConstraint = "payments_transaction_method_key"

const paymentColumns = `id, method, transaction_id, sender_number, amount, currency, status,
	verification_source, verified_by, verified_at, notes, order_id, customer_email,
	proof_object_key, matched_sms_log_id, created_at, updated_at`

type PgPaymentRepository struct {
	db     database.DBTX
	cipher FieldCipher
	logger *slog.Logger
}

func NewPgPaymentRepository(db database.DBTX, cipher FieldCipher, logger *slog.Logger) *PgPaymentRepository {
	return &PgPaymentRepository{db: db, cipher: cipher, logger: logger.With("component", "payment_repository_pg")}
}

func (r *PgPaymentRepository) scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p          domain.Payment
		method     string
		status     string
		source     sql.NullString
		verifiedAt sql.NullTime
		matchedLog sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &method, &p.TransactionID, &p.SenderNumber, &p.Amount, &p.Currency, &status,
		&source, &p.VerifiedBy, &verifiedAt, &p.Notes, &p.OrderID, &p.CustomerEmail,
		&p.ProofObjectKey, &matchedLog, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Method = domain.Method(method)
	p.Status = domain.Status(status)
	p.VerificationSource = domain.VerificationSource(source.String)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	if matchedLog.Valid {
		id := matchedLog.Int64
		p.MatchedSMSLogID = &id
	}
	decryptAll(r.cipher, &p.SenderNumber)
	return &p, nil
}

func (r *PgPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	sender := p.SenderNumber
	if err := encryptAll(r.cipher, &sender); err != nil {
		return domain.PersistenceError("create payment", err)
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		p.ID, string(p.Method), p.TransactionID, sender, p.Amount, p.Currency, string(p.Status),
		string(p.VerificationSource), p.VerifiedBy, p.VerifiedAt, p.Notes, p.OrderID, p.CustomerEmail,
		p.ProofObjectKey, p.MatchedSMSLogID, p.CreatedAt, p.UpdatedAt,
	)
	if database.IsUniqueViolation(err, uniqueTransactionConstraint) {
		existing, findErr := r.FindByTransaction(ctx, p.Method, p.TransactionID)
		if findErr != nil {
			r.logger.WarnContext(ctx, "Unique violation but existing payment lookup failed",
				"method", p.Method, "transaction_id", p.TransactionID, "error", findErr)
			return &domain.DuplicateTransactionError{Method: p.Method, TransactionID: p.TransactionID}
		}
		return &domain.DuplicateTransactionError{ExistingID: existing.ID, Method: p.Method, TransactionID: p.TransactionID}
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating payment", "error", err, "payment_id", p.ID)
		return domain.PersistenceError("create payment", err)
	}
	return nil
}

func (r *PgPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := r.scanPayment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error getting payment by ID", "error", err, "payment_id", id)
		return nil, domain.PersistenceError("get payment", err)
	}
	return p, nil
}

func (r *PgPaymentRepository) FindByTransaction(ctx context.Context, method domain.Method, transactionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE method = $1 AND transaction_id = $2`
	p, err := r.scanPayment(r.db.QueryRow(ctx, query, string(method), domain.NormalizeTransactionID(transactionID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error finding payment by transaction", "error", err, "method", method, "transaction_id", transactionID)
		return nil, domain.PersistenceError("find payment by transaction", err)
	}
	return p, nil
}

func (r *PgPaymentRepository) ListPending(ctx context.Context, f domain.PendingFilter) ([]*domain.Payment, error) {
	var (
		conds = []string{"status = 'pending'"}
		args  []any
	)
	if f.Method != "" {
		args = append(args, string(f.Method))
		conds = append(conds, fmt.Sprintf("method = $%d", len(args)))
	}
	if f.TransactionID != "" {
		args = append(args, domain.NormalizeTransactionID(f.TransactionID))
		conds = append(conds, fmt.Sprintf("transaction_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.After != nil {
		args = append(args, f.After.CreatedAt, f.After.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) > ($%d, $%d)", len(args)-1, len(args)))
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing pending payments", "error", err)
		return nil, domain.PersistenceError("list pending payments", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan pending payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("list pending payments", err)
	}
	return out, nil
}

// Transition runs the conditional status write, the SMS link and the
// activity row in one database transaction.
func (r *PgPaymentRepository) Transition(ctx context.Context, t domain.Transition) error {
	var (
		verifiedBy string
		verifiedAt *time.Time
	)
	if t.Source != domain.SourceNone {
		at := t.At
		verifiedBy, verifiedAt = t.Actor, &at
	}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments SET
				status = $2,
				verification_source = NULLIF($3, ''),
				verified_by = $4,
				verified_at = $5,
				notes = COALESCE(NULLIF($6, ''), notes),
				matched_sms_log_id = COALESCE($7, matched_sms_log_id),
				updated_at = $8
			WHERE id = $1 AND status = 'pending'
		`, t.PaymentID, string(t.To), string(t.Source), verifiedBy, verifiedAt, t.Notes, t.SMSLogID, t.At)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, t.PaymentID).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			return domain.ErrConflict
		}

		if t.SMSLogID != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE sms_logs SET is_processed = TRUE, matched_payment_id = $2, processed_at = $3
				WHERE id = $1
			`, *t.SMSLogID, t.PaymentID, t.At)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return domain.ErrNotFound
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO payment_activity (payment_id, sms_log_id, action, old_status, new_status, actor, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, t.PaymentID, t.SMSLogID, t.Action, string(domain.StatusPending), string(t.To), t.Actor, t.Notes, t.At)
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
		return err
	}
	r.logger.ErrorContext(ctx, "Error transitioning payment", "error", err, "payment_id", t.PaymentID, "to_status", t.To)
	return domain.PersistenceError("transition payment", err)
}

func (r *PgPaymentRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
