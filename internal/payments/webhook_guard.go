package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// webhookStore is the Redis surface the guard needs.
type webhookStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// WebhookGuard claims gateway event ids so a redelivered event is processed once.
type WebhookGuard struct {
	store    webhookStore
	ttl      time.Duration
	provider string
}

func NewWebhookGuard(store webhookStore, ttl time.Duration, provider string) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("webhook store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	return &WebhookGuard{store: store, ttl: ttl, provider: provider}, nil
}

// Claim reports true when this call took ownership of the event id.
func (g *WebhookGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(g.provider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return set, nil
}

// Release frees the id so the gateway's retry is processed again.
func (g *WebhookGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(g.provider, eventID))
}
