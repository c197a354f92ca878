package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/seasonal-allocation/internal/allocation"
	"github.com/example/seasonal-allocation/internal/application"
	"github.com/example/seasonal-allocation/internal/batch"
	"github.com/example/seasonal-allocation/internal/config"
	httptransport "github.com/example/seasonal-allocation/internal/http"
	"github.com/example/seasonal-allocation/internal/logging"
	"github.com/example/seasonal-allocation/internal/persistence/sqlite"
	"github.com/example/seasonal-allocation/internal/recurrence"
	"github.com/example/seasonal-allocation/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Service: httptransport.ServiceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("allocator stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  httptransport.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	storage, err := sqlite.Open(cfg.SQLiteDSN, sqlite.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(storage, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("allocator API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newHandler wires the services over storage and returns the HTTP handler.
func newHandler(storage *sqlite.Storage, cfg config.Config, logger *slog.Logger) http.Handler {
	now := time.Now

	allocations := application.NewAllocationService(storage, storage, uuid.NewString, now, logger)
	reservations := application.NewReservationService(storage, recurrence.NewEngine(cfg.Location, 0), uuid.NewString, now, logger)

	workflow := allocation.NewService(backendAdapter{service: allocations}, backendAdapter{service: allocations}, logger)
	series := seriesAdapter{service: reservations}
	editor := batch.New(series, series, batch.Options{
		ProbeSize:   cfg.BatchProbeSize,
		Concurrency: cfg.BatchConcurrency,
		Now:         now,
		NewJobID:    uuid.NewString,
		Logger:      logger,
	})

	return httptransport.NewRouter(httptransport.RouterConfig{
		Allocations:  httptransport.NewAllocationHandler(workflow, logger),
		Reservations: httptransport.NewReservationHandler(reservations, editor, cfg.Location, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
		DisableTracing: !cfg.Telemetry.Enabled,
	})
}
