package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centralpricelist/pricelist/internal/app"
	jobmetrics "github.com/centralpricelist/pricelist/internal/jobs"
	"github.com/centralpricelist/pricelist/internal/observability"
	"github.com/centralpricelist/pricelist/internal/platform/cache"
	"github.com/centralpricelist/pricelist/internal/platform/db"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	"github.com/centralpricelist/pricelist/jobs"
)

func main() {
	if app.SkipStartup("worker") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	oracles := app.NewOracleRegistry(cfg, logger, metrics.Pipeline().ObserveOracle)
	statuses := pricelist.NewRedisStatusStore(redisClient, cfg.StatusTTL).WithLogger(logger)
	service := pricelist.NewService(pricelist.NewRepository(pool), statuses, oracles, metrics.Pipeline(), logger, cfg.PricelistConfig())

	spool, err := pricelist.NewSpool(cfg.UploadDir)
	if err != nil {
		logger.Error("init upload spool", slog.Any("error", err))
		os.Exit(1)
	}

	processJob := jobs.NewProcessUploadJob(service, spool, logger, jobMetrics)
	cleanupJob := jobs.NewCleanupUploadsJob(service, spool, logger, jobMetrics)

	cleanupTask, err := jobs.NewCleanupUploadsTask(cfg.UploadRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProcessUpload, Handler: processJob.Handle},
			{Type: jobs.TaskCleanupUploads, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CleanupSchedule, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
