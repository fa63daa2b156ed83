package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/laggedout/storefront-backend/pkg/redis"
)

// Claim is the result of Begin for one delivery.
type Claim int

const (
	// Claimed means the caller owns the event and must Finish or Abandon it.
	Claimed Claim = iota
	// Done means an earlier delivery already finished the event.
	Done
	// InFlight means another delivery holds the lease; redeliver later.
	InFlight
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	DefaultLease = 5 * time.Minute
)

// Guard de-duplicates Pub/Sub deliveries for a single consumer.
//
// Begin takes a short lease under lo:idempotency:evt:<consumer>:<event_id>.
// A worker that dies mid-event leaves only the lease behind, so the event
// is retried once it lapses. Finish swaps the lease for a long-lived done
// marker.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	lease    time.Duration
	ttl      time.Duration
}

func NewGuard(store redis.IdempotencyStore, consumer string, lease, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	if ttl < lease {
		return nil, fmt.Errorf("done ttl %s shorter than lease %s", ttl, lease)
	}
	return &Guard{store: store, consumer: consumer, lease: lease, ttl: ttl}, nil
}

func (g *Guard) Begin(ctx context.Context, eventID uuid.UUID) (Claim, error) {
	key, err := g.key(eventID)
	if err != nil {
		return InFlight, err
	}
	ok, err := g.store.SetNX(ctx, key, markerProcessing, g.lease)
	if err != nil {
		return InFlight, fmt.Errorf("claim event: %w", err)
	}
	if ok {
		return Claimed, nil
	}

	state, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Lease lapsed between the two calls.
		return InFlight, nil
	case err != nil:
		return InFlight, fmt.Errorf("read event marker: %w", err)
	case state == markerDone:
		return Done, nil
	default:
		return InFlight, nil
	}
}

func (g *Guard) Finish(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, markerDone, g.ttl); err != nil {
		return fmt.Errorf("mark event done: %w", err)
	}
	return nil
}

// Abandon drops the lease so the next redelivery can claim immediately.
func (g *Guard) Abandon(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String()), nil
}
