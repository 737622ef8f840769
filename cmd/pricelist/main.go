package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centralpricelist/pricelist/internal/app"
	"github.com/centralpricelist/pricelist/internal/observability"
	"github.com/centralpricelist/pricelist/internal/platform/cache"
	"github.com/centralpricelist/pricelist/internal/platform/db"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	pricelisthttp "github.com/centralpricelist/pricelist/internal/pricelist/http"
	"github.com/centralpricelist/pricelist/internal/shared"
	"github.com/centralpricelist/pricelist/jobs"
)

func main() {
	if app.SkipStartup("api") {
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := pricelist.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

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
	oracles := app.NewOracleRegistry(cfg, logger, metrics.Pipeline().ObserveOracle)
	statuses := pricelist.NewRedisStatusStore(redisClient, cfg.StatusTTL).WithLogger(logger)
	service := pricelist.NewService(pricelist.NewRepository(dbpool), statuses, oracles, metrics.Pipeline(), logger, cfg.PricelistConfig())

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	var (
		enqueuer pricelisthttp.Enqueuer
		spooler  pricelisthttp.Spooler
	)
	if cfg.AsyncUploads {
		spool, err := pricelist.NewSpool(cfg.UploadDir)
		if err != nil {
			logger.Error("init upload spool", slog.Any("error", err))
			os.Exit(1)
		}
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		enqueuer, spooler = jobClient, spool
	}

	pricelistHandler := pricelisthttp.NewHandler(logger, service, enqueuer, spooler, cfg.UploadMaxBytes)
	pricelistHandler.WithIdempotency(shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PricelistHandler: pricelistHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: max(cfg.AppWriteTimeout, app.RequestTimeout(cfg)),
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.Bool("async_uploads", cfg.AsyncUploads),
			slog.Any("oracles", oracles.Available()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
