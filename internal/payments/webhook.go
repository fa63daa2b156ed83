package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
)

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"

	webhookProcessed = "processed"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookFailed    = "failed"
)

// EventParser verifies the Stripe-Signature header and decodes the event.
type EventParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

// WebhookService turns gateway callbacks into settlement and failure transitions.
type WebhookService struct {
	parser   EventParser
	guard    *WebhookGuard
	payments Service
	orders   orders.Service
	repo     *orders.Repository
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

type WebhookDeps struct {
	Parser   EventParser
	Guard    *WebhookGuard
	Payments Service
	Orders   orders.Service
	Repo     *orders.Repository
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

func NewWebhookService(deps WebhookDeps) (*WebhookService, error) {
	if deps.Parser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook parser required")
	}
	if deps.Payments == nil || deps.Orders == nil || deps.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment and order services required")
	}
	return &WebhookService{
		parser:   deps.Parser,
		guard:    deps.Guard,
		payments: deps.Payments,
		orders:   deps.Orders,
		repo:     deps.Repo,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

// HandleStripe verifies and applies one webhook delivery. A returned error
// makes Stripe retry; the dedupe claim is released in that case.
func (w *WebhookService) HandleStripe(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := w.parser.ParseWebhook(payload, signatureHeader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeSignatureMismatch, err, "invalid webhook signature")
	}
	eventType := string(event.Type)

	if w.guard != nil {
		claimed, err := w.guard.Claim(ctx, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
		}
		if !claimed {
			w.metrics.Webhook(eventType, webhookDuplicate)
			return nil
		}
	}

	outcome, err := w.apply(ctx, event)
	if err != nil {
		w.metrics.Webhook(eventType, webhookFailed)
		if w.guard != nil {
			if relErr := w.guard.Release(ctx, event.ID); relErr != nil && w.logg != nil {
				w.logg.Warn(w.logg.WithField(ctx, "event_id", event.ID), "release webhook claim: "+relErr.Error())
			}
		}
		return err
	}
	w.metrics.Webhook(eventType, outcome)
	return nil
}

func (w *WebhookService) apply(ctx context.Context, event stripe.Event) (string, error) {
	switch string(event.Type) {
	case eventIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return "", err
		}
		_, err = w.payments.SettleFromGateway(ctx, intent.ID, paymentIDOf(intent))
		switch {
		case err == nil:
			return webhookProcessed, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeAlreadyVerified), pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound):
			return webhookIgnored, nil
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			// Funds were captured for an order that already failed.
			if w.logg != nil {
				w.logg.Warn(w.logg.WithField(ctx, "gateway_order_id", intent.ID), "payment succeeded for a failed order")
			}
			return webhookIgnored, nil
		}
		return "", err

	case eventIntentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return "", err
		}
		order, err := w.repo.FindByGatewayID(ctx, intent.ID)
		if err != nil {
			if db.IsNotFound(err) {
				return webhookIgnored, nil
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		moved, err := w.orders.FailOrder(ctx, order.ID, enums.OrderFailureGatewayDeclined)
		if err != nil {
			return "", err
		}
		if !moved {
			return webhookIgnored, nil
		}
		return webhookProcessed, nil
	}
	return webhookIgnored, nil
}

func decodeIntent(event stripe.Event) (*stripe.PaymentIntent, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event has no data")
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s without payment intent id", event.Type))
	}
	return &intent, nil
}

// paymentIDOf prefers the charge id, which is what clients see after confirmation.
func paymentIDOf(intent *stripe.PaymentIntent) string {
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		return intent.LatestCharge.ID
	}
	return intent.ID
}
