package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/cron"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/notifications"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/pkg/config"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/instance"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
	"github.com/laggedout/storefront-backend/pkg/migrate"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.Features.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(gdb), cfg.Checkout.Currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	// The expiry sweep only fails local orders; it never calls the gateway.
	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:        orders.NewRepository(gdb),
		CartRepo:    cart.NewRepository(gdb),
		Tx:          dbClient,
		Catalog:     catalogSvc,
		Gateway:     gateway.SandboxGateway{},
		Outbox:      emitter,
		Bus:         events.Nop{},
		Metrics:     checkoutMetrics,
		Logger:      logg,
		OrderTTL:    cfg.Checkout.OrderTTL,
		ExpiryGrace: cfg.Checkout.ExpiryGrace,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:  logg,
		Orders:  ordersSvc,
		Metrics: jobMetrics,
		Batch:   cfg.Cron.Batch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order expiry job", err)
		os.Exit(1)
	}

	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Metrics:    jobMetrics,
		DB:         dbClient,
		Repository: outbox.NewRepository(gdb),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	notificationJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Metrics:    jobMetrics,
		DB:         dbClient,
		Repository: notifications.NewRepository(gdb),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, outboxJob, notificationJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
