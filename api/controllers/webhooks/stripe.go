package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/laggedout/storefront-backend/api/responses"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

const maxPayloadBytes = 64 << 10

type stripeHandler interface {
	HandleStripe(ctx context.Context, payload []byte, signatureHeader string) error
}

// StripeWebhook verifies and applies PaymentIntent events. Any non-2xx makes
// Stripe redeliver, so duplicates and ignored events still answer 200.
func StripeWebhook(svc stripeHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		if err := svc.HandleStripe(ctx, payload, sigHeader); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
