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

	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/config"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/messaging"
	pgRepo "github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/postgres"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/topology"
	"github.com/cschwartz85032/loanserve-sub001/internal/presentation/rest"
	"github.com/cschwartz85032/loanserve-sub001/pkg/observability"
	pkgpostgres "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting servicingd", "http_addr", cfg.HTTPAddr)

	if cfg.Tracing.Endpoint != "" {
		shutdown, trErr := observability.InitTracer(ctx, cfg.Tracing)
		if trErr != nil {
			logger.Warn("tracing disabled", "error", trErr)
		} else {
			defer func() { _ = shutdown(ctx) }() //nolint:errcheck
		}
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = meterProvider.Shutdown(ctx) }() //nolint:errcheck
	pipelineMetrics, err := observability.NewPipelineMetrics(meterProvider.Meter(cfg.ServiceName))
	if err != nil {
		logger.Error("failed to register instruments", "error", err)
		os.Exit(1)
	}

	// Database.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := pkgpostgres.NewPool(dbCtx, cfg.Database)
	dbCancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pkgpostgres.RunMigrations(cfg.Database.DSN(), "file://internal/infrastructure/postgres/migrations"); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	// Repositories.
	paymentStore := pgRepo.NewPaymentStore(pool, logger)
	servicingRepo := pgRepo.NewServicingRepo(pool)
	reconRepo := pgRepo.NewReconciliationRepo(pool)
	eventLog := pgRepo.NewEventLogRepo(pool)
	outboxRepo := pgRepo.NewOutboxRepo(pool)
	outboxWriter := pgRepo.NewOutboxWriter(pool)
	processedRepo := pgRepo.NewProcessedMessageRepo(pool)
	loanReads := pgRepo.NewLoanReadModel(pool)

	// Ownership precision is load-bearing for distribution math. Refuse to
	// start against a schema that lost it.
	if err := servicingRepo.CheckOwnershipPrecision(ctx); err != nil {
		logger.Error("ownership precision check failed", "error", err)
		os.Exit(1)
	}

	// Broker.
	conn, err := rabbitmq.Dial(cfg.Broker)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck

	topoManager := topology.NewManager(conn, logger)
	report, err := topoManager.Apply()
	if err != nil {
		logger.Error("topology apply failed", "error", err)
		os.Exit(1)
	}
	logger.Info("topology applied",
		"exchanges", report.ExchangesDeclared,
		"queues", report.QueuesDeclared,
		"refused", len(report.Refused),
		"recreated", len(report.Recreated),
		"versioned", len(report.Versioned))

	publisher, err := rabbitmq.NewPublisher(conn)
	if err != nil {
		logger.Error("failed to open publisher channel", "error", err)
		os.Exit(1)
	}
	defer func() { _ = publisher.Close() }() //nolint:errcheck

	// Domain services and use cases.
	validator := service.NewEnvelopeValidator()
	allocator := service.NewWaterfallAllocator()
	scorer := service.NewRiskScorer()
	builder := service.NewPostingBuilder()
	accrual := service.NewAccrualCalculator()

	postUC := usecase.NewPostPaymentUseCase(paymentStore, paymentStore, loanReads, validator, allocator, scorer, builder, logger)
	getPaymentUC := usecase.NewGetPaymentUseCase(paymentStore)
	reverseUC := usecase.NewReversePaymentUseCase(paymentStore, paymentStore, builder, logger)
	startRunUC := usecase.NewStartServicingRunUseCase(servicingRepo, outboxWriter, logger)
	getRunUC := usecase.NewGetServicingRunUseCase(servicingRepo)
	cancelRunUC := usecase.NewCancelServicingRunUseCase(servicingRepo, logger)
	cycleUC := usecase.NewRunServicingCycleUseCase(servicingRepo, loanReads, accrual, outboxWriter, logger)
	reconUC := usecase.NewRecordReconciliationUseCase(reconRepo, servicingRepo, outboxWriter, logger)
	verifyUC := usecase.NewVerifyEventChainUseCase(eventLog, logger)
	exportUC := usecase.NewExportEventChainUseCase(eventLog)

	// Outbox dispatcher.
	dispatcher := messaging.NewDispatcher(outboxRepo, publisher, cfg.Dispatcher, pipelineMetrics, logger)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", "error", err)
			cancel()
		}
	}()

	// Broker consumers.
	consumers := messaging.NewConsumers(postUC, reverseUC, cycleUC, processedRepo, pipelineMetrics, logger)
	intake := rabbitmq.NewConsumer(conn, messaging.IntakeSpec(), consumers.IntakeHandler(), logger)
	reversal := rabbitmq.NewConsumer(conn, messaging.ReversalSpec(), consumers.ReversalHandler(), logger)
	runs := rabbitmq.NewConsumer(conn, messaging.RunsSpec(), consumers.RunHandler(), logger)
	for name, c := range map[string]*rabbitmq.Consumer{"intake": intake, "reversal": reversal, "runs": runs} {
		go func(name string, c *rabbitmq.Consumer) {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "consumer", name, "error", err)
				cancel()
			}
		}(name, c)
	}

	// HTTP surface.
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	rest.NewHealthHandler(cfg.ServiceName, map[string]rest.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return pkgpostgres.HealthCheck(ctx, pool) },
		"broker":   func(context.Context) error { return brokerCheck(conn) },
	}, logger).RegisterRoutes(mux)
	rest.NewPaymentHandler(getPaymentUC, reverseUC, logger).RegisterRoutes(mux)
	rest.NewServicingHandler(startRunUC, getRunUC, cancelRunUC, cycleUC, logger).RegisterRoutes(mux)
	rest.NewReconciliationHandler(reconUC, logger).RegisterRoutes(mux)
	rest.NewChainHandler(verifyUC, exportUC, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	logger.Info("stopped")
}

// brokerCheck verifies a channel can still be opened on the connection.
func brokerCheck(conn *rabbitmq.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	return ch.Close()
}
