package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/outbound-dispatch/internal/audit"
	"github.com/kursadbilgin/outbound-dispatch/internal/config"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/fee"
	"github.com/kursadbilgin/outbound-dispatch/internal/handler"
	"github.com/kursadbilgin/outbound-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/outbound-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/outbound-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/outbound-dispatch/internal/ledger"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/provider"
	"github.com/kursadbilgin/outbound-dispatch/internal/queue"
	"github.com/kursadbilgin/outbound-dispatch/internal/registry"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"github.com/kursadbilgin/outbound-dispatch/internal/service"
	"github.com/kursadbilgin/outbound-dispatch/internal/template"
	"github.com/kursadbilgin/outbound-dispatch/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	attemptRepo := repository.NewGormAttemptRepo(db)
	budgetRepo := repository.NewGormBudgetRepo(db)
	walletRepo := repository.NewGormWalletRepo(db)
	providerRepo := repository.NewGormProviderRepo(db)
	feeRuleRepo := repository.NewGormFeeRuleRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)
	transactionRepo := repository.NewGormTransactionRepo(db)

	providerRegistry := registry.New(providerRepo, cfg.ProviderCacheTTL())
	budgetLedger := ledger.New(budgetRepo, walletRepo, cfg.BudgetCacheTTL())
	budgetLedger.SetMetrics(metrics)
	feeEngine := fee.NewEngine(feeRuleRepo, cfg.FeeRuleCacheTTL())
	templateResolver := template.NewResolver(templateRepo, cfg.TemplateCacheTTL())

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	referenceStore, err := infraredis.NewReferenceStore(rdb, cfg.ReferenceTTL())
	if err != nil {
		logger.Fatal("reference store initialization failed", zap.Error(err))
	}

	gateway, err := provider.NewMobileMoneyGateway(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.ProviderTimeout())
	if err != nil {
		logger.Fatal("gateway initialization failed", zap.Error(err))
	}

	sink := audit.NewSink(attemptRepo, budgetLedger, cfg.AuditQueueSize, logger)
	sink.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(provider.NewSender, sink, cfg.ProviderTimeout(), logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	notifyService, err := service.NewNotifyService(
		providerRegistry,
		budgetLedger,
		templateResolver,
		dispatcher,
		sink,
		referenceStore,
		rateLimiter,
		logger,
	)
	if err != nil {
		logger.Fatal("notify service initialization failed", zap.Error(err))
	}
	notifyService.SetMetrics(metrics)

	withdrawService, err := service.NewWithdrawService(
		transactionRepo,
		feeEngine,
		gateway,
		sink,
		referenceStore,
		rateLimiter,
		cfg.ProviderTimeout(),
		logger,
	)
	if err != nil {
		logger.Fatal("withdraw service initialization failed", zap.Error(err))
	}
	withdrawService.SetMetrics(metrics)

	statusService, err := service.NewStatusService(transactionRepo, logger)
	if err != nil {
		logger.Fatal("status service initialization failed", zap.Error(err))
	}
	statusService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterDispatchRoutes(app, notifyService, withdrawService, statusService, attemptRepo); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	consumer := queue.NewRabbitMQConsumer(mq, cfg.ConsumerPrefetch, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sink.Start(groupCtx)
	})

	g.Go(func() error {
		return consumer.Consume(groupCtx, queue.SettlementQueue, settlementHandler(statusService, logger))
	})

	g.Go(func() error {
		logger.Info("outbound-dispatch api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api terminated", zap.Error(err))
		os.Exit(1)
	}
}

// settlementHandler feeds gateway settlement messages into the
// transaction state machine. Anomalous transitions are permanent
// failures and must be acked, not requeued; everything else is
// retried by the consumer.
func settlementHandler(statuses *service.StatusService, logger *zap.Logger) queue.MessageHandler {
	return func(ctx context.Context, msg queue.SettlementMessage) error {
		status, err := msg.TransactionStatus()
		if err != nil {
			logger.Warn("discarding settlement with unparseable status",
				zap.String("externalRef", msg.ExternalRef),
				zap.String("status", msg.Status),
				zap.Error(err),
			)
			return nil
		}

		err = statuses.ApplySettlement(ctx, msg.ExternalRef, status, msg.Note)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrAnomalousTransition) || errors.Is(err, domain.ErrValidation) {
			logger.Warn("discarding unprocessable settlement",
				zap.String("externalRef", msg.ExternalRef),
				zap.String("status", msg.Status),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
}
