package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfsreconcile/golang_services/internal/payment_service/adapters/events"
	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
	"github.com/mfsreconcile/golang_services/internal/platform/idgen"
	"github.com/mfsreconcile/golang_services/internal/platform/lock"
	"github.com/mfsreconcile/golang_services/internal/platform/logger"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

// env is the service wiring an operator command needs.
type env struct {
	cfg   *config.Config
	vault *vault.Vault
	repos *repository.Repositories
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load("mfsctl")
	if err != nil {
		return nil, err
	}
	v, err := vault.New(cfg.VaultSecret)
	if err != nil {
		return nil, err
	}
	repos, err := repository.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN, v, logger.New(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, vault: v, repos: repos}, nil
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation sweep and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.repos.Close()

			log := logger.New(e.cfg.LogLevel)
			ids, err := idgen.NewSnowflake(e.cfg.NodeID)
			if err != nil {
				return err
			}
			var locker lock.Locker
			rc, err := lock.NewRedisClient(ctx, e.cfg.RedisAddr, e.cfg.RedisPass, e.cfg.RedisDB)
			if err != nil {
				return err
			}
			if rc != nil {
				defer rc.Close()
				locker = lock.NewRedisLocker(rc, "mfs:lock:", log)
			}

			sinks, err := events.ConnectSinks(e.cfg, "mfsctl", log)
			if err != nil {
				return err
			}
			defer sinks.Close()

			report, err := newSweeper(e, ids, locker, log, sinks.Hooks()...).Run(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

// newSweeper builds the sweeper over e with hooks attached to its store, the
// same hooks the service registers.
func newSweeper(e *env, ids domain.IDGenerator, locker lock.Locker, log *slog.Logger, hooks ...app.TransitionHook) *app.Sweeper {
	store := app.NewPaymentStore(e.repos.Payments, e.repos.Activity, nil, ids, e.cfg.DefaultCurrency, log)
	for _, h := range hooks {
		store.AddHook(h)
	}
	rec := app.NewReconciler(e.repos.Payments, e.repos.SMSLogs, store, app.ReconcilerConfig{
		AmountTolerance: e.cfg.Tolerance(),
		MatchWindow:     e.cfg.MatchWindow,
	}, log)
	return app.NewSweeper(e.repos.Payments, store, rec, locker, app.SweeperConfig{
		PaymentTimeout: e.cfg.PaymentTimeout,
		BatchSize:      e.cfg.SweepBatchSize,
		LockTTL:        e.cfg.SweepLockTTL,
	}, log)
}

func rotateSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-secret",
		Short: "Generate a new webhook signing secret for the api source",
		Long: `Generate a new webhook signing secret. The old secret stops
verifying immediately; update every API integration with the printed value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.repos.Close()

			actor, _ := cmd.Flags().GetString("actor")
			secrets := app.NewWebhookSecrets(e.repos.Settings, e.repos.Activity, e.vault, logger.New(e.cfg.LogLevel))
			secret, err := secrets.Rotate(cmd.Context(), actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().String("actor", "mfsctl", "Actor recorded in the activity log")
	return cmd
}
