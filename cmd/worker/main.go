package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arkabooks/arkabooks/internal/app"
	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/platform/cache"
	"github.com/arkabooks/arkabooks/internal/platform/db"
	"github.com/arkabooks/arkabooks/internal/reports"
	"github.com/arkabooks/arkabooks/internal/shared"
	"github.com/arkabooks/arkabooks/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	activity := shared.NewActivityLogger(pool)

	ledgerRepo := ledger.NewRepository(pool)
	wellKnown, err := ledger.ResolveWellKnown(ctx, ledgerRepo)
	if err != nil {
		logger.Error("resolve account mappings", slog.Any("error", err))
		os.Exit(1)
	}
	ledgerService := ledger.NewService(ledgerRepo, activity, wellKnown)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, activity, logger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo, activity)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	trialBalanceTask, err := jobs.NewTrialBalanceTask(time.Now().UTC())
	if err != nil {
		logger.Error("build trial balance task", slog.Any("error", err))
		os.Exit(1)
	}
	plugTask, err := jobs.NewEquityPlugTask(time.Time{})
	if err != nil {
		logger.Error("build equity plug task", slog.Any("error", err))
		os.Exit(1)
	}
	revaluationTask, err := jobs.NewInventoryRevaluationTask(time.Now().UTC())
	if err != nil {
		logger.Error("build revaluation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTrialBalanceCheck, Handler: jobs.NewTrialBalanceHandler(ledgerService, logger)},
			{Type: jobs.TaskEquityPlugRecompute, Handler: jobs.NewEquityPlugHandler(ledgerService, reportCache, logger)},
			{Type: jobs.TaskInventoryRevaluation, Handler: jobs.NewInventoryRevaluationHandler(directoryService, inventoryService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: trialBalanceTask},
			{Spec: "30 2 * * *", Task: plugTask},
			{Spec: "0 3 * * *", Task: revaluationTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
