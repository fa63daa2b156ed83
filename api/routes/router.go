package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laggedout/storefront-backend/api/controllers"
	webhookcontrollers "github.com/laggedout/storefront-backend/api/controllers/webhooks"
	"github.com/laggedout/storefront-backend/api/middleware"
	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/library"
	"github.com/laggedout/storefront-backend/internal/notifications"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/payments"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/internal/refunds"
	"github.com/laggedout/storefront-backend/pkg/config"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// Store is the redis surface the HTTP layer uses for idempotency, rate
// limiting and readiness.
type Store interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(context.Context) error
}

type stripeWebhookHandler interface {
	HandleStripe(ctx context.Context, payload []byte, signatureHeader string) error
}

// Deps carries everything the router mounts. Nil services answer INTERNAL_ERROR.
type Deps struct {
	DB    db.Pinger
	Store Store

	Catalog       catalog.Service
	Cart          cart.Service
	Orders        orders.Service
	Payments      payments.Service
	Purchases     purchases.Service
	Library       library.Service
	Refunds       refunds.Service
	Notifications notifications.Service
	StripeWebhook stripeWebhookHandler
	// Sandbox is set only when the sandbox gateway is active.
	Sandbox controllers.SandboxConfirmer

	Metrics prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessChecks(deps), logg))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, logg))
	})

	verifyLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "verify-payment",
		Limit:  cfg.Checkout.VerifyLimit,
		Window: cfg.Checkout.VerifyWindow,
	}, rateLimiter(deps.Store), logg)

	r.Route("/api", func(r chi.Router) {
		r.Get("/games", controllers.ListGames(deps.Catalog, logg))
		r.Get("/games/{gameId}", controllers.GetGame(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore(deps.Store), cfg.Checkout.IdemTTL, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.Cart, logg))
				r.Post("/add", controllers.AddCartItem(deps.Cart, logg))
				r.Delete("/remove/{itemId}", controllers.RemoveCartItem(deps.Cart, logg))
				r.Post("/create-order", controllers.CreateCartOrder(deps.Orders, logg))
				r.With(verifyLimit).Post("/verify-payment", controllers.VerifyPayment(deps.Payments, logg))
			})

			r.Route("/purchase", func(r chi.Router) {
				r.Post("/create-order", controllers.CreateSingleItemOrder(deps.Orders, logg))
				r.With(verifyLimit).Post("/verify-payment", controllers.VerifyPayment(deps.Payments, logg))
				r.Get("/my-history", controllers.ListPurchaseHistory(deps.Purchases, logg))
			})

			if deps.Sandbox != nil {
				r.Post("/sandbox/confirm", controllers.ConfirmSandboxPayment(deps.Sandbox, logg))
			}

			r.Get("/library", controllers.ListLibrary(deps.Library, logg))

			r.Route("/refund", func(r chi.Router) {
				r.Post("/request-refund", controllers.RequestRefund(deps.Refunds, logg))
				r.Get("/mine", controllers.ListMyRefunds(deps.Refunds, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
					r.Get("/", controllers.ListRefunds(deps.Refunds, logg))
					r.Post("/review/{refundId}", controllers.ReviewRefund(deps.Refunds, logg))
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})
		})
	})

	return r
}

func readinessChecks(deps Deps) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Store != nil {
		checks["redis"] = deps.Store
	}
	return checks
}

// The middleware treat a nil store as disabled; a typed nil must not leak through.
func idempotencyStore(store Store) interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
} {
	if store == nil {
		return nil
	}
	return store
}

func rateLimiter(store Store) interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
} {
	if store == nil {
		return nil
	}
	return store
}
