package library

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/db/dbtest"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
	"github.com/laggedout/storefront-backend/pkg/redis"
)

type memoryCache struct {
	values map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryCache) CacheKey(kind, id string) string {
	return "lo:cache:" + kind + ":" + id
}

func seedPurchase(t *testing.T, conn *gorm.DB, userID, gameID uuid.UUID) models.Purchase {
	t.Helper()
	p := models.Purchase{
		UserID:         userID,
		OrderID:        uuid.New(),
		OrderItemID:    uuid.New(),
		GameID:         gameID,
		Edition:        "Standard Edition",
		PricePaidCents: 1000,
		Currency:       "USD",
		PurchasedAt:    time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func TestOwnedGamesSkipsRevokedAndDeduplicates(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(purchases.NewRepository(conn), nil, 0, logger.Nop())
	require.NoError(t, err)

	userID := uuid.New()
	kept, revoked := uuid.New(), uuid.New()
	seedPurchase(t, conn, userID, kept)
	seedPurchase(t, conn, userID, kept)
	p := seedPurchase(t, conn, userID, revoked)
	seedPurchase(t, conn, uuid.New(), uuid.New())

	require.NoError(t, svc.Revoke(context.Background(), conn, p, time.Now().UTC()))
	require.NoError(t, svc.Revoke(context.Background(), conn, p, time.Now().UTC()))

	owned, err := svc.OwnedGames(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{kept}, owned)

	var stored models.Purchase
	require.NoError(t, conn.First(&stored, "id = ?", p.ID).Error)
	assert.NotNil(t, stored.RevokedAt)
}

func TestOwnedGamesCachedUntilOwnershipChanges(t *testing.T) {
	conn := dbtest.Open(t)
	cache := &memoryCache{values: map[string]string{}}
	svc, err := NewService(purchases.NewRepository(conn), cache, time.Minute, logger.Nop())
	require.NoError(t, err)
	bus := events.NewBus(logger.Nop())
	Register(bus, svc)

	userID := uuid.New()
	first := uuid.New()
	seedPurchase(t, conn, userID, first)

	owned, err := svc.OwnedGames(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	seedPurchase(t, conn, userID, uuid.New())
	owned, err = svc.OwnedGames(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, owned, 1, "served from cache")

	bus.Publish(context.Background(), outbox.DomainEvent{
		EventType:     enums.EventOrderVerified,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          payloads.OrderVerifiedEvent{UserID: userID},
	})
	owned, err = svc.OwnedGames(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestOwnerOfUsesPayloadOwner(t *testing.T) {
	owner, admin := uuid.New(), uuid.New()
	got, ok := ownerOf(outbox.DomainEvent{
		EventType: enums.EventRefundReviewed,
		Actor:     &outbox.ActorRef{UserID: admin},
		Data:      &payloads.RefundReviewedEvent{UserID: owner},
	})
	require.True(t, ok)
	assert.Equal(t, owner, got)

	_, ok = ownerOf(outbox.DomainEvent{Data: map[string]any{}})
	assert.False(t, ok)
}
