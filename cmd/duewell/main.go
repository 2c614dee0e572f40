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

	"github.com/duewell/duewell/internal/app"
	"github.com/duewell/duewell/internal/auth"
	"github.com/duewell/duewell/internal/authz"
	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/customer"
	"github.com/duewell/duewell/internal/invoice"
	"github.com/duewell/duewell/internal/observability"
	"github.com/duewell/duewell/internal/org"
	"github.com/duewell/duewell/internal/platform/cache"
	"github.com/duewell/duewell/internal/platform/db"
	"github.com/duewell/duewell/internal/shared"
	"github.com/duewell/duewell/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	sessions := auth.NewSessionManager(redisClient, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	orgRepo := org.NewRepository(pool)
	orgService := org.NewService(orgRepo, logger)
	orgHandler := org.NewHandler(logger, orgService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessions, orgService)

	customerRepo := customer.NewRepository(pool)
	customerService := customer.NewService(customerRepo)
	customerHandler := customer.NewHandler(logger, customerService)

	coordinator := collection.NewCoordinator(collection.DefaultPlaybook())

	caseRepo := collection.NewRepository(pool)
	caseService := collection.NewService(caseRepo, coordinator, auditLogger, logger)
	caseHandler := collection.NewHandler(logger, caseService)

	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(invoiceRepo, coordinator, auditLogger, logger)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, idempotencyStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, queueClient, logger)

	sessionMiddleware := auth.Middleware{Sessions: sessions, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Sessions:          sessionMiddleware,
		Authz:             authz.Middleware{Logger: logger},
		AuthHandler:       authHandler,
		OrgHandler:        orgHandler,
		InvoiceHandler:    invoiceHandler,
		CollectionHandler: caseHandler,
		CustomerHandler:   customerHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
