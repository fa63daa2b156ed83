package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

// Service exposes the per-user cart.
type Service interface {
	AddItem(ctx context.Context, userID uuid.UUID, spec catalog.ItemSpec) (*LineView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	CountItems(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Deps wires the cart service.
type Deps struct {
	Repo     *Repository
	Tx       db.TxRunner
	Catalog  catalog.Service
	Outbox   outbox.Emitter
	Bus      events.Publisher
	Badge    *BadgeCache
	Currency string
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	tx       db.TxRunner
	catalog  catalog.Service
	outbox   outbox.Emitter
	bus      events.Publisher
	badge    *BadgeCache
	currency string
	logg     *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	currency := deps.Currency
	if currency == "" {
		currency = "USD"
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		catalog:  deps.Catalog,
		outbox:   deps.Outbox,
		bus:      bus,
		badge:    deps.Badge,
		currency: currency,
		logg:     deps.Logger,
	}, nil
}

// AddItem is idempotent: adding the same item again returns the existing line.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, spec catalog.ItemSpec) (*LineView, error) {
	item, err := s.catalog.Resolve(ctx, spec)
	if err != nil {
		return nil, err
	}

	rec := events.NewRecorder(s.outbox)
	var line models.CartItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindMatching(ctx, userID, item.Spec())
		if err == nil {
			line = *existing
			return nil
		}
		if !db.IsNotFound(err) {
			return err
		}

		line = models.CartItem{
			UserID:         userID,
			GameID:         item.GameID,
			EditionID:      item.EditionID,
			DLCID:          item.DLCID,
			UnitPriceCents: item.UnitPriceCents,
		}
		if err := repo.Create(ctx, &line); err != nil {
			return err
		}
		return s.emitChanged(ctx, tx, rec, repo, userID, payloads.CartActionAdded)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	rec.Flush(ctx, s.bus)

	view := lineView(line, catalog.Resolution{Item: item, Available: true})
	return &view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	rec := events.NewRecorder(s.outbox)
	var found bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		repo := s.repo.WithTx(tx)
		var err error
		found, err = repo.Delete(ctx, userID, itemID)
		if err != nil || !found {
			return err
		}
		return s.emitChanged(ctx, tx, rec, repo, userID, payloads.CartActionRemoved)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item is not in your cart")
	}
	rec.Flush(ctx, s.bus)
	return nil
}

// GetCart prices every line from the catalog at read time.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	specs := make([]catalog.ItemSpec, 0, len(items))
	for _, it := range items {
		specs = append(specs, specOf(it))
	}
	resolutions, err := s.catalog.ResolveMany(ctx, specs)
	if err != nil {
		return nil, err
	}

	// The catalog only resolves items priced in the store currency, so every
	// available line can be summed under it.
	view := &View{Items: make([]LineView, 0, len(items)), ItemCount: len(items)}
	for i, it := range items {
		line := lineView(it, resolutions[i])
		if line.Available {
			view.TotalCents += resolutions[i].Item.UnitPriceCents
		}
		view.Items = append(view.Items, line)
	}
	view.Total = money.New(view.TotalCents, s.currency)
	return view, nil
}

// CountItems backs the cart badge and is served from Redis when possible.
func (s *service) CountItems(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.badge != nil {
		if count, ok, err := s.badge.Get(ctx, userID); err == nil && ok {
			return count, nil
		} else if err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "cart badge cache read failed: "+err.Error())
		}
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cart items")
	}
	if s.badge != nil {
		_ = s.badge.Set(ctx, userID, count)
	}
	return count, nil
}

func (s *service) emitChanged(ctx context.Context, tx *gorm.DB, rec *events.Recorder, repo *Repository, userID uuid.UUID, action string) error {
	count, err := repo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	return rec.Emit(ctx, tx, ChangedEvent(userID, count, action))
}

// ChangedEvent builds the CartChanged domain event. The cart aggregate id is the owner's user id.
func ChangedEvent(userID uuid.UUID, count int64, action string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventCartChanged,
		AggregateType: enums.AggregateCart,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: userID},
		Data: payloads.CartChangedEvent{
			UserID:    userID,
			ItemCount: count,
			Action:    action,
		},
	}
}

func specOf(it models.CartItem) catalog.ItemSpec {
	return catalog.ItemSpec{GameID: it.GameID, EditionID: it.EditionID, DLCID: it.DLCID}
}

func lineView(it models.CartItem, res catalog.Resolution) LineView {
	return LineView{
		ID:              it.ID,
		GameID:          it.GameID,
		EditionID:       it.EditionID,
		DLCID:           it.DLCID,
		Title:           res.Item.Title,
		Label:           res.Item.Label,
		UnitPrice:       money.New(res.Item.UnitPriceCents, res.Item.Currency),
		AddedPriceCents: it.UnitPriceCents,
		Available:       res.Available,
		AddedAt:         it.AddedAt,
	}
}
