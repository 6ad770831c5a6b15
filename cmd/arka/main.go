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

	"github.com/arkabooks/arkabooks/internal/app"
	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/platform/cache"
	"github.com/arkabooks/arkabooks/internal/platform/db"
	"github.com/arkabooks/arkabooks/internal/pos"
	"github.com/arkabooks/arkabooks/internal/reports"
	"github.com/arkabooks/arkabooks/internal/serviceorder"
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
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
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
	ledgerRegistry := ledger.NewRegistry(ledgerRepo, activity, wellKnown)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, activity, logger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, activity)

	posService := pos.NewService(ledgerService, inventoryService, financeService, wellKnown, logger)

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}
	reportsService := reports.NewService(ledgerService, reportCache, logger)

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo, activity)

	orderRepo := serviceorder.NewRepository(pool)
	orderService := serviceorder.NewService(orderRepo, ledgerService, inventoryService, financeService,
		directoryService, wellKnown, activity, logger)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledger.NewHandler(logger, ledgerService, ledgerRegistry),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		FinanceHandler:   finance.NewHandler(logger, financeService),
		POSHandler:       pos.NewHandler(logger, posService).WithIdempotency(shared.NewIdempotencyStore(pool)),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		DirectoryHandler: directory.NewHandler(logger, directoryService),
		ServiceOrders:    serviceorder.NewHandler(logger, orderService),
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
