package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	fsmadapter "github.com/liftoff/provisioner/internal/adapter/fsm"
	handler "github.com/liftoff/provisioner/internal/adapter/http"
	oteladapter "github.com/liftoff/provisioner/internal/adapter/otel"
	riveradapter "github.com/liftoff/provisioner/internal/adapter/river"
	"github.com/liftoff/provisioner/internal/adapter/sqlite"
	"github.com/liftoff/provisioner/internal/app"
	"github.com/liftoff/provisioner/internal/config"
	"github.com/liftoff/provisioner/internal/domain"
	"github.com/liftoff/provisioner/internal/provider"
	"github.com/liftoff/provisioner/internal/worker"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "provisioner: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// --- Telemetry ---
	if cfg.Otel.Enabled {
		providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv(cfg.Otel.ServiceName))
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Error("otel shutdown", "error", err)
			}
		}()
	}

	// --- Storage ---
	var db *sql.DB
	if cfg.Otel.Enabled {
		// The instrumented open skips migrations; run them explicitly.
		if db, err = oteladapter.OpenDB(cfg.Database.Path); err == nil {
			err = sqlite.Migrate(db)
		}
	} else {
		db, err = sqlite.Open(cfg.Database.Path)
	}
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	var tenants domain.TenantRepository = sqlite.NewTenantRepository(db)
	if cfg.Otel.Enabled {
		tenants = oteladapter.NewTracingRepository(tenants)
	}
	plans := sqlite.NewPlanRepository(db)
	eventLog := sqlite.NewEventLogRepository(db)
	schemas := sqlite.NewSchemaStore(db)
	credentials := sqlite.NewCredentialStore(db)

	// --- Queue ---
	handlers := &riveradapter.Handlers{Logger: logger}
	client, err := riveradapter.Setup(ctx, db, handlers, riveradapter.Config{
		Prefetch:      cfg.Queue.Prefetch,
		SweepInterval: cfg.Sweep.Interval,
	})
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}

	var publisher domain.EventPublisher = handlers.Publisher()
	if cfg.Otel.Enabled {
		publisher = oteladapter.NewTracingPublisher(publisher)
	}

	// --- Application ---
	validator := fsmadapter.New()
	svc := app.NewTenantService(tenants, plans, eventLog, publisher, validator, logger)

	dns := &provider.MockDNS{Zone: "liftoff.dev", Logger: logger}
	billing := &provider.MockBilling{Logger: logger}
	mailer := &provider.MockMailer{Logger: logger}

	handlers.Service = svc
	handlers.Sweeper = app.NewSweeper(tenants, svc, cfg.Sweep.Threshold, logger)
	handlers.Schema = worker.NewSchemaProvisioner(schemas, eventLog, logger)
	handlers.DNS = worker.NewDNSProvisioner(dns, eventLog, logger)
	handlers.Credentials = worker.NewCredentialsIssuer(credentials, eventLog, logger)
	handlers.Billing = worker.NewBillingActivator(billing, eventLog, logger)
	handlers.Notifier = worker.NewNotifier(mailer, eventLog, logger)
	handlers.Cleaner = worker.NewCleaner(schemas, credentials, logger)

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting queue: %w", err)
	}

	// --- HTTP ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	if cfg.Otel.Enabled {
		router.Use(otelchi.Middleware(cfg.Otel.ServiceName, otelchi.WithChiRoutes(router)))
	}

	api := humachi.New(router, huma.DefaultConfig("provisioner", "0.1.0"))
	handler.Register(api, svc)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("provisioner listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := client.Stop(shutdownCtx); err != nil {
		logger.Error("queue shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
