package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/duewell/duewell/internal/app"
	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/invoice"
	jobmetrics "github.com/duewell/duewell/internal/jobs"
	"github.com/duewell/duewell/internal/observability"
	"github.com/duewell/duewell/internal/platform/db"
	"github.com/duewell/duewell/internal/shared"
	"github.com/duewell/duewell/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	trackers := jobmetrics.NewMetrics(metrics.Registerer())

	coordinator := collection.NewCoordinator(collection.DefaultPlaybook())
	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(invoiceRepo, coordinator, shared.NewAuditLogger(pool), logger)
	caseRepo := collection.NewRepository(pool)

	sweepJob := jobs.NewSweepJob(invoiceService, caseRepo, logger, trackers, metrics)

	overdueTask, err := jobs.NewOverdueSweepTask(jobs.SweepPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	promiseTask, err := jobs.NewPromiseSweepTask(jobs.SweepPayload{})
	if err != nil {
		logger.Error("build promise task", slog.Any("error", err))
		os.Exit(1)
	}
	reminderTask, err := jobs.NewReminderScanTask(jobs.SweepPayload{})
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceOverdueSweep, Handler: sweepJob.HandleOverdue},
			{Type: jobs.TaskPromiseSweep, Handler: sweepJob.HandlePromises},
			{Type: jobs.TaskReminderScan, Handler: sweepJob.HandleReminders},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueSweepSpec, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.PromiseSweepSpec, Task: promiseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ReminderScanSpec, Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
