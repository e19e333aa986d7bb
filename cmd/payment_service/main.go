package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	gRPC "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/mfsreconcile/golang_services/internal/payment_service/adapters/events"
	httpadapter "github.com/mfsreconcile/golang_services/internal/payment_service/adapters/http"
	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/parser"
	"github.com/mfsreconcile/golang_services/internal/payment_service/repository"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
	"github.com/mfsreconcile/golang_services/internal/platform/idgen"
	"github.com/mfsreconcile/golang_services/internal/platform/lock"
	"github.com/mfsreconcile/golang_services/internal/platform/logger"
	"github.com/mfsreconcile/golang_services/internal/platform/objectstore"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

const (
	serviceName     = "payment-service"
	shutdownTimeout = 15 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Payment service starting...",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"metrics_port", cfg.MetricsPort,
		"store_driver", cfg.StoreDriver,
		"log_level", cfg.LogLevel,
	)

	if insecure := cfg.InsecureSecrets(); len(insecure) > 0 {
		if !cfg.AllowInsecureSecrets {
			appLogger.Error("Refusing to start with placeholder secrets; set them or APP_ALLOW_INSECURE_SECRETS=true for local use",
				"keys", insecure)
			os.Exit(1)
		}
		appLogger.Warn("Running with placeholder secrets; tokens and stored fields are not protected", "keys", insecure)
	}

	v, err := vault.New(cfg.VaultSecret)
	if err != nil {
		appLogger.Error("Failed to initialise vault", "error", err)
		os.Exit(1)
	}

	repos, err := repository.Open(mainCtx, cfg.StoreDriver, cfg.PostgresDSN, v, appLogger)
	if err != nil {
		appLogger.Error("Failed to open storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer repos.Close()

	ids, err := idgen.NewSnowflake(cfg.NodeID)
	if err != nil {
		appLogger.Error("Failed to initialise id generator", "node_id", cfg.NodeID, "error", err)
		os.Exit(1)
	}

	var proofs app.ProofStorage
	s3Store, err := objectstore.NewS3Store(mainCtx, objectstore.Options{
		Bucket:    cfg.ProofBucket,
		Endpoint:  cfg.ProofEndpoint,
		Region:    cfg.ProofRegion,
		AccessKey: cfg.ProofAccessKey,
		SecretKey: cfg.ProofSecretKey,
	}, appLogger)
	switch {
	case errors.Is(err, objectstore.ErrNotConfigured):
		appLogger.Warn("Proof bucket not configured (APP_PROOF_BUCKET); bank transfers are disabled")
	case err != nil:
		appLogger.Error("Failed to initialise proof storage", "error", err)
		os.Exit(1)
	default:
		proofs = s3Store
	}

	var locker lock.Locker
	redisClient, err := lock.NewRedisClient(mainCtx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, "mfs:lock:", appLogger)
		appLogger.Info("Sweeper uses Redis lock", "addr", cfg.RedisAddr)
	}

	store := app.NewPaymentStore(repos.Payments, repos.Activity, proofs, ids, cfg.DefaultCurrency, appLogger)

	sinks, err := events.ConnectSinks(cfg, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer sinks.Close()
	sinks.Attach(store)

	reconciler := app.NewReconciler(repos.Payments, repos.SMSLogs, store, app.ReconcilerConfig{
		AmountTolerance: cfg.Tolerance(),
		MatchWindow:     cfg.MatchWindow,
	}, appLogger)
	secrets := app.NewWebhookSecrets(repos.Settings, repos.Activity, v, appLogger)
	gateway := app.NewGateway(map[domain.IngestSource]auth.Authenticator{
		domain.IngestForwarderApp: auth.LoopbackBypass{
			Enabled: cfg.AllowLoopbackBypass,
			Next:    auth.StaticKey{Key: cfg.ForwarderAPIKey},
		},
		domain.IngestAPI:            auth.HMACBody{Secrets: secrets},
		domain.IngestCarrierWebhook: auth.TwilioSignature{AuthToken: cfg.TwilioAuthToken, BaseURL: cfg.TwilioWebhookURL},
		domain.IngestManualEntry:    auth.MerchantIdentity{},
	}, parser.New(cfg.CustomKeywords()), repos.SMSLogs, reconciler, ids, appLogger)
	sweeper := app.NewSweeper(repos.Payments, store, reconciler, locker, app.SweeperConfig{
		PaymentTimeout: cfg.PaymentTimeout,
		BatchSize:      cfg.SweepBatchSize,
		LockTTL:        cfg.SweepLockTTL,
	}, appLogger)

	handler := httpadapter.NewHandler(httpadapter.HandlerDeps{
		Ingestor:  gateway,
		Submitter: app.NewSubmissionService(store, reconciler, appLogger),
		Payments:  store,
		Secrets:   secrets,
		Sweeper:   sweeper,
	}, appLogger)
	router := httpadapter.NewRouter(handler, auth.MerchantJWT(cfg.JWTSecret, cfg.JWTIssuer, appLogger))

	g, groupCtx := errgroup.WithContext(mainCtx)

	// --- gRPC health ---
	grpcServer := gRPC.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	grpcListenAddress := fmt.Sprintf(":%d", cfg.GRPCPort)
	grpcListener, err := net.Listen("tcp", grpcListenAddress)
	if err != nil {
		appLogger.Error("Failed to listen for gRPC", "address", grpcListenAddress, "error", err)
		os.Exit(1)
	}
	g.Go(func() error {
		appLogger.Info("gRPC health server starting", "address", grpcListenAddress)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, gRPC.ErrServerStopped) {
			appLogger.Error("gRPC server failed to serve", "error", err)
			return err
		}
		return nil
	})

	// --- REST API ---
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	// --- Metrics ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	// --- Sweeper ---
	if cfg.SweepInterval > 0 {
		g.Go(func() error {
			return sweeper.Start(groupCtx, cfg.SweepInterval)
		})
	} else {
		appLogger.Warn("Periodic sweep disabled (APP_SWEEP_INTERVAL <= 0)")
	}

	// --- Relayed SMS over NATS ---
	if sinks.NATS != nil && cfg.InboundSMSSubject != "" {
		consumer := events.NewSMSConsumer(sinks.NATS, gateway, appLogger)
		g.Go(func() error {
			return consumer.Start(groupCtx, cfg.InboundSMSSubject, events.InboundQueueGroup)
		})
	}

	// --- Graceful shutdown ---
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErrors error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics shutdown: %w", err))
		}
		grpcServer.GracefulStop()
		if sinks.Notifier != nil {
			sinks.Notifier.Wait()
		}
		return shutdownErrors
	})

	appLogger.Info("Payment service is ready and running.")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
	}
	appLogger.Info("Payment service shut down successfully.")
}
