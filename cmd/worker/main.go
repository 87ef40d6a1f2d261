package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pocket-bank/pocket-bank/internal/app"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/platform/cache"
	"github.com/pocket-bank/pocket-bank/internal/platform/db"
	"github.com/pocket-bank/pocket-bank/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
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

	annualLock := cache.NewMutex(redisClient, "pocketbank:annual-aggregation", 15*time.Minute)
	balanceSheetRepo := balancesheet.NewRepository(pool)
	balanceSheetService := balancesheet.NewService(balanceSheetRepo, annualLock)

	// Year 0 lets the handler default to the just-ended accounting year.
	annualTask, err := jobs.NewAnnualAggregationTask(0)
	if err != nil {
		logger.Error("build annual aggregation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAnnualAggregation, Handler: jobs.NewAnnualAggregationHandler(balanceSheetService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 1 1 *", Task: annualTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
