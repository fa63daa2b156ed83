package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/laggedout/storefront-backend/pkg/config"
)

// Breaker stops calling a failing provider for a cool-down period. Only
// outage errors count toward tripping; provider rejections do not.
type Breaker struct {
	inner Gateway
	cb    *gobreaker.CircuitBreaker[Order]
}

func NewBreaker(inner Gateway, cfg config.GatewayConfig) *Breaker {
	maxFail := cfg.BreakerMaxFail
	if maxFail == 0 {
		maxFail = 5
	}
	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFail
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker[Order](settings)}
}

func (b *Breaker) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	order, err := b.cb.Execute(func() (Order, error) {
		return b.inner.CreateOrder(ctx, in)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Order{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return order, err
}

// State reports the breaker state for readiness checks.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
