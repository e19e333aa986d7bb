package postgres

import (
	"log/slog"

	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

// Store bundles the repositories over one pool.
type Store struct {
	Payments *PgPaymentRepository
	SMSLogs  *PgSMSLogRepository
	Activity *PgActivityRepository
	Settings *PgSettingsRepository
}

func NewStore(db database.DBTX, cipher FieldCipher, logger *slog.Logger) *Store {
	return &Store{
		Payments: NewPgPaymentRepository(db, cipher, logger),
		SMSLogs:  NewPgSMSLogRepository(db, cipher, logger),
		Activity: NewPgActivityRepository(db, logger),
		Settings: NewPgSettingsRepository(db, logger),
	}
}
