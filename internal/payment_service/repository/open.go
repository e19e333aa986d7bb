// Package repository selects the storage driver behind the payment service.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository/memory"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository/postgres"
	"github.com/mfsreconcile/golang_services/internal/platform/database"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Repositories is the storage surface the app layer needs, whichever driver
// backs it. Close releases the underlying pool.
type Repositories struct {
	Payments domain.PaymentRepository
	SMSLogs  domain.SMSLogRepository
	Activity domain.ActivityRepository
	Settings domain.SettingsRepository
	Close    func()
}

// Open connects the named driver. Postgres is migrated before use.
func Open(ctx context.Context, driver, dsn string, cipher postgres.FieldCipher, logger *slog.Logger) (*Repositories, error) {
	switch driver {
	case DriverMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		mem := memory.NewStore()
		return &Repositories{
			Payments: mem.Payments,
			SMSLogs:  mem.SMSLogs,
			Activity: mem.Activity,
			Settings: mem.Settings,
			Close:    func() {},
		}, nil
	case DriverPostgres, "":
		pool, err := database.NewDBPool(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		pg := postgres.NewStore(pool, cipher, logger)
		return &Repositories{
			Payments: pg.Payments,
			SMSLogs:  pg.SMSLogs,
			Activity: pg.Activity,
			Settings: pg.Settings,
			Close:    pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
