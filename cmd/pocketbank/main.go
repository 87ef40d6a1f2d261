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

	"github.com/pocket-bank/pocket-bank/internal/app"
	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/income"
	"github.com/pocket-bank/pocket-bank/internal/investments"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/loans"
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

	floor, err := cfg.Floor()
	if err != nil {
		logger.Error("parse reserve floor", slog.Any("error", err))
		os.Exit(1)
	}
	bankAccount, err := cfg.BankAccount()
	if err != nil {
		logger.Error("parse bank account", slog.Any("error", err))
		os.Exit(1)
	}
	if bankAccount == nil {
		logger.Warn("bank operating account not configured, lending disabled")
	}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, floor)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	loansRepo := loans.NewRepository(pool)
	loansService := loans.NewService(loansRepo, bankAccount, floor)
	loansHandler := loans.NewHandler(logger, loansService)

	investmentsRepo := investments.NewRepository(pool)
	investmentsService := investments.NewService(investmentsRepo, bankAccount, floor)
	investmentsHandler := investments.NewHandler(logger, investmentsService)

	incomeRepo := income.NewRepository(pool)
	incomeService := income.NewService(incomeRepo, bankAccount, floor)
	incomeHandler := income.NewHandler(logger, incomeService)

	annualLock := cache.NewMutex(redisClient, "pocketbank:annual-aggregation", 15*time.Minute)
	balanceSheetRepo := balancesheet.NewRepository(pool)
	balanceSheetService := balancesheet.NewService(balanceSheetRepo, annualLock)
	balanceSheetHandler := balancesheet.NewHandler(logger, balanceSheetService)

	auditReader := audit.NewReader(pool)
	auditHandler := audit.NewHandler(logger, auditReader)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		LedgerHandler:       ledgerHandler,
		LoansHandler:        loansHandler,
		InvestmentsHandler:  investmentsHandler,
		IncomeHandler:       incomeHandler,
		BalanceSheetHandler: balanceSheetHandler,
		AuditHandler:        auditHandler,
		JobsHandler:         jobsHandler,
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
