package cart

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/redis"
)

const badgeCacheKind = "cart-badge"

// BadgeCache keeps the per-user cart item count in Redis. Entries are dropped
// whenever a CartChanged event commits.
type BadgeCache struct {
	cache redis.Cache
	ttl   time.Duration
}

func NewBadgeCache(cache redis.Cache, ttl time.Duration) *BadgeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BadgeCache{cache: cache, ttl: ttl}
}

func (b *BadgeCache) key(userID uuid.UUID) string {
	return b.cache.CacheKey(badgeCacheKind, userID.String())
}

func (b *BadgeCache) Get(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	raw, err := b.cache.Get(ctx, b.key(userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

func (b *BadgeCache) Set(ctx context.Context, userID uuid.UUID, count int64) error {
	return b.cache.Set(ctx, b.key(userID), strconv.FormatInt(count, 10), b.ttl)
}

func (b *BadgeCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return b.cache.Del(ctx, b.key(userID))
}

// Register hooks the cache into the in-process event bus.
func (b *BadgeCache) Register(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, evt outbox.DomainEvent) error {
		return b.Invalidate(ctx, evt.AggregateID)
	}, enums.EventCartChanged)
}
