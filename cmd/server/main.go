package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecocomply/ecocomply/internal"
	"github.com/ecocomply/ecocomply/internal/artifact"
	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/handler"
	"github.com/ecocomply/ecocomply/internal/jobs"
	"github.com/ecocomply/ecocomply/internal/metrics"
	"github.com/ecocomply/ecocomply/internal/middleware"
	"github.com/ecocomply/ecocomply/internal/repository"
	"github.com/ecocomply/ecocomply/internal/rules"
	"github.com/ecocomply/ecocomply/internal/service"
	"github.com/ecocomply/ecocomply/internal/storage"
	"github.com/ecocomply/ecocomply/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	store := repository.New(db, logger)

	// Initialize object storage
	objectStore, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Initialize services
	registry := rules.NewDefaultRegistry(store)
	adoption := service.NewAdoptionResolver(store, logger)
	readiness := service.NewReadinessService(adoption, store, store, registry, logger)
	dispatcher := worker.NewQueueDispatcher(store)
	generation := service.NewGenerationService(store, readiness, dispatcher, cfg.PackExpiry, logger)
	governance := service.NewGovernanceService(store, logger)
	elv := service.NewElvService(store, logger)
	trend := service.NewTrendService(store, logger)

	// Initialize background worker
	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		jobWorker, err = worker.New(db, store, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}

		renderer, err := artifact.ForFormat(domain.ArtifactFormat(cfg.ArtifactFormat))
		if err != nil {
			return fmt.Errorf("renderer initialization failed: %w", err)
		}
		jobWorker.Register(jobs.NewGeneratePackHandler(store, objectStore, trend, renderer, logger))

		jobWorker.Start(ctx)
		logger.Info("Background worker started", "concurrency", workerCfg.Concurrency)
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (optionally behind basic auth)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	handler.NewPackHandler(readiness, generation, governance, objectStore, logger).RegisterRoutes(mux)
	handler.NewElvHandler(elv, logger).RegisterRoutes(mux)
	handler.NewTrendHandler(trend, logger).RegisterRoutes(mux)

	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	stack := middleware.Stack(loggingMw.Handler, metrics.Middleware)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: stack(mux),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if jobWorker != nil {
		jobWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage builds the configured object storage backend.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
