package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/laggedout/storefront-backend/api/routes"
	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/library"
	"github.com/laggedout/storefront-backend/internal/notifications"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/payments"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/internal/refunds"
	"github.com/laggedout/storefront-backend/pkg/config"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/instance"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
	"github.com/laggedout/storefront-backend/pkg/migrate"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/redis"
	pkgstripe "github.com/laggedout/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.Features.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	var (
		stripeClient *pkgstripe.Client
		intents      gateway.PaymentIntentCreator
	)
	if strings.EqualFold(cfg.Gateway.Provider, gateway.ProviderStripe) || cfg.Gateway.Provider == "" {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return err
		}
		intents = stripeClient.API().V1PaymentIntents
	}
	gw, err := gateway.New(cfg.Gateway, intents)
	if err != nil {
		return err
	}
	signer, err := gateway.NewSigner(cfg.Gateway.SigningSecret)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gdb := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)
	bus := events.NewBus(logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(gdb), cfg.Checkout.Currency)
	if err != nil {
		return err
	}

	cartRepo := cart.NewRepository(gdb)
	badge := cart.NewBadgeCache(redisClient, 0)
	badge.Register(bus)
	cartSvc, err := cart.NewService(cart.Deps{
		Repo:     cartRepo,
		Tx:       dbClient,
		Catalog:  catalogSvc,
		Outbox:   emitter,
		Bus:      bus,
		Badge:    badge,
		Currency: cfg.Checkout.Currency,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	ordersRepo := orders.NewRepository(gdb)
	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:        ordersRepo,
		CartRepo:    cartRepo,
		Tx:          dbClient,
		Catalog:     catalogSvc,
		Gateway:     gw,
		Outbox:      emitter,
		Bus:         bus,
		Metrics:     checkoutMetrics,
		Logger:      logg,
		OrderTTL:    cfg.Checkout.OrderTTL,
		ExpiryGrace: cfg.Checkout.ExpiryGrace,
	})
	if err != nil {
		return err
	}

	purchasesRepo := purchases.NewRepository(gdb)
	paymentsSvc, err := payments.NewService(payments.Deps{
		Orders:    ordersRepo,
		Cart:      cartRepo,
		Purchases: purchasesRepo,
		Tx:        dbClient,
		Signer:    signer,
		Outbox:    emitter,
		Bus:       bus,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	purchasesSvc, err := purchases.NewService(purchasesRepo)
	if err != nil {
		return err
	}
	librarySvc, err := library.NewService(purchasesRepo, redisClient, 0, logg)
	if err != nil {
		return err
	}
	library.Register(bus, librarySvc)

	refundsSvc, err := refunds.NewService(refunds.Deps{
		Repo:      refunds.NewRepository(gdb),
		Purchases: purchasesRepo,
		Revoker:   librarySvc,
		Tx:        dbClient,
		Outbox:    emitter,
		Bus:       bus,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		return err
	}

	deps := routes.Deps{
		DB:            dbClient,
		Store:         redisClient,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Orders:        ordersSvc,
		Payments:      paymentsSvc,
		Purchases:     purchasesSvc,
		Library:       librarySvc,
		Refunds:       refundsSvc,
		Notifications: notificationsSvc,
		Metrics:       registry,
	}

	if strings.EqualFold(cfg.Gateway.Provider, gateway.ProviderSandbox) && !cfg.App.IsProd() {
		confirmer, err := payments.NewSandboxConfirmer(ordersRepo, signer)
		if err != nil {
			return err
		}
		deps.Sandbox = confirmer
	}

	if stripeClient != nil {
		guard, err := payments.NewWebhookGuard(redisClient, cfg.Eventing.WebhookDedupeTTL, gateway.ProviderStripe)
		if err != nil {
			return err
		}
		webhookSvc, err := payments.NewWebhookService(payments.WebhookDeps{
			Parser:   stripeClient,
			Guard:    guard,
			Payments: paymentsSvc,
			Orders:   ordersSvc,
			Repo:     ordersRepo,
			Metrics:  checkoutMetrics,
			Logger:   logg,
		})
		if err != nil {
			return err
		}
		deps.StripeWebhook = webhookSvc
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"gateway":  cfg.Gateway.Provider,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:         addr,
		Handler:      routes.NewRouter(cfg, logg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
