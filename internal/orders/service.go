package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

// Service reserves gateway orders and drives the pending -> failed transition.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateInput) (*View, error)
	FailOrder(ctx context.Context, orderID uuid.UUID, reason enums.OrderFailureReason) (bool, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}

type Deps struct {
	Repo     *Repository
	CartRepo *cart.Repository
	Tx       db.TxRunner
	Catalog  catalog.Service
	Gateway  gateway.Gateway
	Outbox   outbox.Emitter
	Bus      events.Publisher
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
	OrderTTL time.Duration
	// ExpiryGrace keeps an expired order payable a little longer before the
	// expiry job fails it.
	ExpiryGrace time.Duration
	Clock       func() time.Time
}

type service struct {
	repo     *Repository
	cartRepo *cart.Repository
	tx       db.TxRunner
	catalog  catalog.Service
	gateway  gateway.Gateway
	outbox   outbox.Emitter
	bus      events.Publisher
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	ttl      time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil || deps.CartRepo == nil {
		return nil, fmt.Errorf("order and cart repositories required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.OrderTTL <= 0 {
		return nil, fmt.Errorf("order ttl must be positive")
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     deps.Repo,
		cartRepo: deps.CartRepo,
		tx:       deps.Tx,
		catalog:  deps.Catalog,
		gateway:  deps.Gateway,
		outbox:   deps.Outbox,
		bus:      bus,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		ttl:      deps.OrderTTL,
		grace:    deps.ExpiryGrace,
		now:      clock,
	}, nil
}

// CreateOrder prices the lines from the catalog and reserves a gateway order,
// handing back a matching pending order instead when one is still payable.
func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateInput) (*View, error) {
	lines, err := s.collectLines(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	amount, currency, err := total(lines)
	if err != nil {
		return nil, err
	}
	fp := fingerprint(input.Source, lines)
	now := s.now()

	existing, err := s.repo.FindReusable(ctx, userID, fp, amount, now)
	switch {
	case err == nil:
		s.metrics.OrderReused(string(input.Source))
		view := viewOf(existing, lines)
		view.Reused = true
		return view, nil
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup pending order")
	}

	order := &models.Order{
		ID:               uuid.New(),
		UserID:           userID,
		Source:           input.Source,
		Status:           enums.OrderStatusPending,
		AmountCents:      amount,
		Currency:         currency,
		ItemsFingerprint: fp,
		ExpiresAt:        now.Add(s.ttl),
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		AmountCents: amount,
		Currency:    currency,
		Receipt:     order.ID.String(),
		UserID:      userID,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway rejected the order")
	}
	order.GatewayOrderID = gwOrder.ID
	if gwOrder.ClientSecret != "" {
		secret := gwOrder.ClientSecret
		order.ClientSecret = &secret
	}
	for _, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			CartItemID:     l.cartItemID,
			GameID:         l.item.GameID,
			EditionID:      l.item.EditionID,
			DLCID:          l.item.DLCID,
			Label:          l.item.Label,
			UnitPriceCents: l.item.UnitPriceCents,
		})
	}

	rec := events.NewRecorder(s.outbox)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return rec.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				GatewayOrderID: order.GatewayOrderID,
				UserID:         userID,
				Source:         order.Source,
				AmountCents:    amount,
				Currency:       currency,
				ItemCount:      len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store order")
	}
	rec.Flush(ctx, s.bus)
	s.metrics.OrderCreated(string(input.Source))

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "gateway_order_id", order.GatewayOrderID), "order created")
	}
	return viewOf(order, lines), nil
}

func (s *service) collectLines(ctx context.Context, userID uuid.UUID, input CreateInput) ([]line, error) {
	switch input.Source {
	case enums.OrderSourceSingleItem:
		if input.Item == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is required for a single item purchase")
		}
		item, err := s.catalog.Resolve(ctx, *input.Item)
		if err != nil {
			return nil, err
		}
		return []line{{item: item}}, nil

	case enums.OrderSourceCart:
		items, err := s.cartRepo.ListByUser(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		specs := make([]catalog.ItemSpec, 0, len(items))
		for _, it := range items {
			specs = append(specs, catalog.ItemSpec{GameID: it.GameID, EditionID: it.EditionID, DLCID: it.DLCID})
		}
		resolutions, err := s.catalog.ResolveMany(ctx, specs)
		if err != nil {
			return nil, err
		}
		lines := make([]line, 0, len(items))
		for i, res := range resolutions {
			if !res.Available {
				continue
			}
			id := items[i].ID
			lines = append(lines, line{cartItemID: &id, item: res.Item})
		}
		if len(lines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "your cart is empty")
		}
		return lines, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order source %q", input.Source))
	}
}

// total refuses to add up lines priced in different currencies.
func total(lines []line) (int64, string, error) {
	currency := lines[0].item.Currency
	amount := int64(0)
	for _, l := range lines {
		if !strings.EqualFold(l.item.Currency, currency) {
			return 0, "", pkgerrors.New(pkgerrors.CodeValidation, "items priced in different currencies cannot share an order").
				WithDetails(map[string]any{"currencies": []string{currency, l.item.Currency}})
		}
		amount += l.item.UnitPriceCents
	}
	return amount, strings.ToUpper(currency), nil
}

// FailOrder moves a pending order to failed. It reports false when the order
// had already left pending.
func (s *service) FailOrder(ctx context.Context, orderID uuid.UUID, reason enums.OrderFailureReason) (bool, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return false, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return s.fail(ctx, order, reason)
}

func (s *service) fail(ctx context.Context, order *models.Order, reason enums.OrderFailureReason) (bool, error) {
	now := s.now()
	rec := events.NewRecorder(s.outbox)
	var moved bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		var err error
		moved, err = s.repo.WithTx(tx).MarkFailed(ctx, order.ID, reason, now)
		if err != nil || !moved {
			return err
		}
		return rec.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.OrderFailedEvent{
				OrderID:        order.ID,
				GatewayOrderID: order.GatewayOrderID,
				UserID:         order.UserID,
				Reason:         reason,
				FailedAt:       now,
			},
		})
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail order")
	}
	if moved {
		rec.Flush(ctx, s.bus)
		s.metrics.OrderFailed(string(reason))
	}
	return moved, nil
}

// ExpireStale fails pending orders past expires_at plus the grace window.
func (s *service) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	stale, err := s.repo.FindExpiredPending(ctx, now.Add(-s.grace), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired orders")
	}
	expired := 0
	for i := range stale {
		moved, err := s.fail(ctx, &stale[i], enums.OrderFailureExpired)
		if err != nil {
			return expired, err
		}
		if moved {
			expired++
		}
	}
	return expired, nil
}

func viewOf(order *models.Order, lines []line) *View {
	view := &View{
		OrderID:     order.GatewayOrderID,
		ID:          order.ID,
		Source:      order.Source,
		Amount:      money.New(order.AmountCents, order.Currency),
		AmountCents: order.AmountCents,
		Currency:    order.Currency,
		ExpiresAt:   order.ExpiresAt,
		Items:       make([]ItemView, 0, len(lines)),
	}
	if order.ClientSecret != nil {
		view.ClientSecret = *order.ClientSecret
	}
	for _, l := range lines {
		view.Items = append(view.Items, ItemView{
			GameID:    l.item.GameID,
			EditionID: l.item.EditionID,
			DLCID:     l.item.DLCID,
			Label:     l.item.Label,
			UnitPrice: money.New(l.item.UnitPriceCents, l.item.Currency),
		})
	}
	return view
}
