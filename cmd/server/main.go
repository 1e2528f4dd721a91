package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/api"
	"github.com/notifyhub/tenant-dispatch/internal/cache"
	"github.com/notifyhub/tenant-dispatch/internal/config"
	"github.com/notifyhub/tenant-dispatch/internal/db"
	"github.com/notifyhub/tenant-dispatch/internal/ingest"
	"github.com/notifyhub/tenant-dispatch/internal/metrics"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
	"github.com/notifyhub/tenant-dispatch/internal/processor"
	"github.com/notifyhub/tenant-dispatch/internal/provider"
	"github.com/notifyhub/tenant-dispatch/internal/ratelimiter"
	"github.com/notifyhub/tenant-dispatch/internal/repository"
	"github.com/notifyhub/tenant-dispatch/internal/service"
	"github.com/notifyhub/tenant-dispatch/internal/template"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	queueRepo := repository.NewPgQueueRepository(pool)
	settingsRepo := repository.NewPgSettingsRepository(pool)
	optOutRepo := repository.NewPgOptOutRepository(pool)
	templateRepo := repository.NewPgTemplateRepository(pool)

	registry := optout.NewRegistry(optOutRepo, queueRepo, logger)
	engine := template.NewEngine(templateRepo, nil)
	svc := service.NewEntryService(queueRepo, engine, logger)
	ingestor := ingest.NewIngestor(queueRepo, settingsRepo, registry, logger)

	// Redis is an optional fast path; without it daily counts hit the DB.
	daily := cache.NewDailyCounter(nil, queueRepo)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, daily counts fall back to database", zap.Error(err))
		} else {
			defer client.Close()
			daily = cache.NewDailyCounter(client, queueRepo)
		}
	}

	prov := provider.NewWebhookProvider(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	limiter := ratelimiter.New()

	proc := processor.New(
		queueRepo, settingsRepo, registry, provider.Static{P: prov},
		limiter, daily, cfg.BatchSize, cfg.StaleAfter,
		logger, m.ProcessorHooks(),
	)

	// ---- background loops ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	runner := processor.NewRunner(proc, settingsRepo, cfg.ProcessInterval, logger)
	go runner.Run(workerCtx)

	retries := processor.NewRetryScanner(queueRepo, settingsRepo, cfg.RetryBatchSize, cfg.RetryInterval, logger)
	go retries.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, registry, ingestor, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the processing loops. Entries claimed by an interrupted pass
	//    are recovered by the next process's stale reset.
	cancelWorkers()

	logger.Info("server stopped cleanly")
}
