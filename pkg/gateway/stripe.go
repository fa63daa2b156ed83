package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// PaymentIntentCreator is satisfied by stripe.Client.V1PaymentIntents.
type PaymentIntentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// StripeGateway reserves a PaymentIntent per order. The intent id is the
// gateway order id the client later echoes back on verification.
type StripeGateway struct {
	intents PaymentIntentCreator
	timeout time.Duration
}

func NewStripeGateway(intents PaymentIntentCreator, timeout time.Duration) *StripeGateway {
	return &StripeGateway{intents: intents, timeout: timeout}
}

func (g *StripeGateway) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	if in.AmountCents <= 0 {
		return Order{}, errors.New("amount must be positive")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.AmountCents),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"receipt": in.Receipt,
			"user_id": in.UserID.String(),
		},
	}
	if in.Receipt != "" {
		params.SetIdempotencyKey("order:" + in.Receipt)
	}

	intent, err := g.intents.Create(ctx, params)
	if err != nil {
		if isTransient(err) {
			return Order{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Order{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Order{
		ID:           intent.ID,
		AmountCents:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		ClientSecret: intent.ClientSecret,
	}, nil
}

// isTransient treats timeouts, rate limits and 5xx responses as outages.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500
	}
	return true
}
