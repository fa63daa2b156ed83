// Package library answers "which games does this user own" from the purchase
// ledger and revokes access when a refund is approved.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
	"github.com/laggedout/storefront-backend/pkg/redis"
)

const cacheKind = "library"

// Revoker removes a purchase from its owner's library inside the caller's transaction.
type Revoker interface {
	Revoke(ctx context.Context, tx *gorm.DB, purchase models.Purchase, at time.Time) error
}

type Service interface {
	Revoker
	OwnedGames(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type service struct {
	repo  *purchases.Repository
	cache redis.Cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds the library read model. cache may be nil.
func NewService(repo *purchases.Repository, cache redis.Cache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &service{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

func (s *service) OwnedGames(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if ids, ok := s.cached(ctx, userID); ok {
		return ids, nil
	}
	ids, err := s.repo.OwnedGameIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load library")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	if s.cache != nil {
		if raw, err := json.Marshal(ids); err == nil {
			if err := s.cache.Set(ctx, s.cache.CacheKey(cacheKind, userID.String()), string(raw), s.ttl); err != nil {
				s.warn(ctx, userID, "library cache write failed", err)
			}
		}
	}
	return ids, nil
}

func (s *service) cached(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheKind, userID.String()))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.warn(ctx, userID, "library cache read failed", err)
		}
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false
	}
	return ids, true
}

// Revoke stamps revoked_at on the purchase. Revoking twice is a no-op.
func (s *service) Revoke(ctx context.Context, tx *gorm.DB, purchase models.Purchase, at time.Time) error {
	if _, err := s.repo.WithTx(tx).SetRevoked(ctx, purchase.ID, at); err != nil {
		return fmt.Errorf("revoke purchase %s: %w", purchase.ID, err)
	}
	return nil
}

// Invalidate drops the cached library for a user.
func (s *service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.cache.CacheKey(cacheKind, userID.String()))
}

func (s *service) warn(ctx context.Context, userID uuid.UUID, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), msg+": "+err.Error())
}

// Register invalidates the cached library whenever ownership changes.
func Register(bus *events.Bus, svc Service) {
	inv, ok := svc.(interface {
		Invalidate(context.Context, uuid.UUID) error
	})
	if !ok {
		return
	}
	bus.Subscribe(func(ctx context.Context, evt outbox.DomainEvent) error {
		userID, ok := ownerOf(evt)
		if !ok {
			return nil
		}
		return inv.Invalidate(ctx, userID)
	}, enums.EventOrderVerified, enums.EventRefundReviewed)
}

// ownerOf reads the library owner from the payload; the actor of a refund
// review is the admin, not the owner.
func ownerOf(evt outbox.DomainEvent) (uuid.UUID, bool) {
	switch data := evt.Data.(type) {
	case payloads.OrderVerifiedEvent:
		return data.UserID, true
	case *payloads.OrderVerifiedEvent:
		if data != nil {
			return data.UserID, true
		}
	case payloads.RefundReviewedEvent:
		return data.UserID, true
	case *payloads.RefundReviewedEvent:
		if data != nil {
			return data.UserID, true
		}
	}
	return uuid.Nil, false
}
