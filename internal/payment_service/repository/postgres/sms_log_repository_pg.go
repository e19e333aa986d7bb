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

const smsLogColumns = `id, sender_number, message_body, parsed_transaction_id, parsed_amount,
	parsed_sender, payment_method, is_payment_like, parser, is_processed,
	matched_payment_id, source, received_at, processed_at`

type PgSMSLogRepository struct {
	db     database.DBTX
	cipher FieldCipher
	logger *slog.Logger
}

func NewPgSMSLogRepository(db database.DBTX, cipher FieldCipher, logger *slog.Logger) *PgSMSLogRepository {
	return &PgSMSLogRepository{db: db, cipher: cipher, logger: logger.With("component", "sms_log_repository_pg")}
}

func (r *PgSMSLogRepository) scanLog(row pgx.Row) (*domain.SMSLog, error) {
	var (
		l           domain.SMSLog
		method      string
		source      string
		matched     sql.NullInt64
		processedAt sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.SenderNumber, &l.MessageBody, &l.ParsedTransactionID, &l.ParsedAmount,
		&l.ParsedSender, &method, &l.IsPaymentLike, &l.Parser, &l.IsProcessed,
		&matched, &source, &l.ReceivedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	l.PaymentMethod = domain.Method(method)
	l.Source = domain.IngestSource(source)
	if matched.Valid {
		id := matched.Int64
		l.MatchedPaymentID = &id
	}
	if processedAt.Valid {
		t := processedAt.Time
		l.ProcessedAt = &t
	}
	decryptAll(r.cipher, &l.SenderNumber, &l.MessageBody, &l.ParsedSender)
	return &l, nil
}

func (r *PgSMSLogRepository) Create(ctx context.Context, l *domain.SMSLog) error {
	sender, body, parsedSender := l.SenderNumber, l.MessageBody, l.ParsedSender
	if err := encryptAll(r.cipher, &sender, &body, &parsedSender); err != nil {
		return domain.PersistenceError("create sms log", err)
	}
	query := `
		INSERT INTO sms_logs (` + smsLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		l.ID, sender, body, l.ParsedTransactionID, l.ParsedAmount,
		parsedSender, string(l.PaymentMethod), l.IsPaymentLike, l.Parser, l.IsProcessed,
		l.MatchedPaymentID, string(l.Source), l.ReceivedAt, l.ProcessedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating sms log", "error", err, "sms_log_id", l.ID)
		return domain.PersistenceError("create sms log", err)
	}
	return nil
}

func (r *PgSMSLogRepository) GetByID(ctx context.Context, id int64) (*domain.SMSLog, error) {
	query := `SELECT ` + smsLogColumns + ` FROM sms_logs WHERE id = $1`
	l, err := r.scanLog(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error getting sms log by ID", "error", err, "sms_log_id", id)
		return nil, domain.PersistenceError("get sms log", err)
	}
	return l, nil
}

func (r *PgSMSLogRepository) ListUnprocessed(ctx context.Context, f domain.UnprocessedFilter) ([]*domain.SMSLog, error) {
	var (
		conds = []string{"is_processed = FALSE", "is_payment_like = TRUE"}
		args  []any
	)
	if f.Method != "" {
		args = append(args, string(f.Method))
		conds = append(conds, fmt.Sprintf("payment_method = $%d", len(args)))
	}
	if f.TransactionID != "" {
		args = append(args, domain.NormalizeTransactionID(f.TransactionID))
		conds = append(conds, fmt.Sprintf("parsed_transaction_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	query := `SELECT ` + smsLogColumns + ` FROM sms_logs WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY received_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing unprocessed sms logs", "error", err)
		return nil, domain.PersistenceError("list unprocessed sms logs", err)
	}
	defer rows.Close()

	var out []*domain.SMSLog
	for rows.Next() {
		l, err := r.scanLog(rows)
		if err != nil {
			return nil, domain.PersistenceError("scan sms log", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("list unprocessed sms logs", err)
	}
	return out, nil
}

func (r *PgSMSLogRepository) MarkProcessed(ctx context.Context, logID, paymentID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sms_logs SET is_processed = TRUE, matched_payment_id = $2, processed_at = $3 WHERE id = $1`,
		logID, paymentID, time.Now().UTC(),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking sms log processed", "error", err, "sms_log_id", logID)
		return domain.PersistenceError("mark sms log processed", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
