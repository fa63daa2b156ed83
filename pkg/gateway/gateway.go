// Package gateway talks to the external payment provider: it reserves
// payable orders and checks the signature the provider attaches to a
// completed payment callback.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/config"
)

const (
	ProviderStripe  = "stripe"
	ProviderSandbox = "sandbox"
)

// ErrUnavailable wraps failures that mean the provider could not be reached.
var ErrUnavailable = errors.New("payment gateway unavailable")

// CreateOrderInput is what the provider needs to reserve a payable order.
type CreateOrderInput struct {
	AmountCents int64
	Currency    string
	// Receipt is our stable reference; providers use it as an idempotency key.
	Receipt string
	UserID  uuid.UUID
}

// Order is the provider-side handle returned by CreateOrder.
type Order struct {
	ID           string
	AmountCents  int64
	Currency     string
	ClientSecret string
}

type Gateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error)
}

// SandboxGateway reserves orders locally. Used for development and tests
// when no provider credentials are configured.
type SandboxGateway struct{}

func (SandboxGateway) CreateOrder(_ context.Context, in CreateOrderInput) (Order, error) {
	if in.AmountCents <= 0 {
		return Order{}, errors.New("amount must be positive")
	}
	return Order{
		ID:          "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountCents: in.AmountCents,
		Currency:    strings.ToUpper(in.Currency),
	}, nil
}

// New picks the provider named in cfg and wraps it in a circuit breaker.
func New(cfg config.GatewayConfig, creator PaymentIntentCreator) (Gateway, error) {
	var inner Gateway
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderStripe, "":
		if creator == nil {
			return nil, errors.New("stripe gateway requires a payment intent client")
		}
		inner = NewStripeGateway(creator, cfg.RequestTimeout)
	case ProviderSandbox:
		inner = SandboxGateway{}
	default:
		return nil, errors.New("unknown gateway provider " + cfg.Provider)
	}
	return NewBreaker(inner, cfg), nil
}
