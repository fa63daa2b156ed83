package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

var (
	errAlreadySettled = errors.New("order already settled")
	errNotPayable     = errors.New("order no longer payable")
)

// Service settles paid orders into purchases.
type Service interface {
	VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyInput) (*Result, error)
	// SettleFromGateway settles an order the gateway itself reported as paid,
	// so no client signature is involved.
	SettleFromGateway(ctx context.Context, gatewayOrderID, paymentID string) (*Result, error)
}

type Deps struct {
	Orders    *orders.Repository
	Cart      *cart.Repository
	Purchases *purchases.Repository
	Tx        db.TxRunner
	Signer    *gateway.Signer
	Outbox    outbox.Emitter
	Bus       events.Publisher
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Clock     func() time.Time
}

type service struct {
	orders    *orders.Repository
	cart      *cart.Repository
	purchases *purchases.Repository
	tx        db.TxRunner
	signer    *gateway.Signer
	outbox    outbox.Emitter
	bus       events.Publisher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Orders == nil || deps.Cart == nil || deps.Purchases == nil {
		return nil, fmt.Errorf("order, cart and purchase repositories required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
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
		orders:    deps.Orders,
		cart:      deps.Cart,
		purchases: deps.Purchases,
		tx:        deps.Tx,
		signer:    deps.Signer,
		outbox:    deps.Outbox,
		bus:       bus,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       clock,
	}, nil
}

func (s *service) VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyInput) (*Result, error) {
	res, err := s.verify(ctx, userID, input)
	s.metrics.Verification(outcomeOf(err))
	return res, err
}

func (s *service) verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (*Result, error) {
	order, err := s.orders.FindByGatewayID(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}

	if !s.signer.Verify(input.OrderID, input.PaymentID, input.Signature) {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, userID.String()), order.ID.String())
			s.logg.Warn(logCtx, "payment signature mismatch")
		}
		return nil, pkgerrors.New(pkgerrors.CodeSignatureMismatch, "payment could not be verified")
	}

	return s.settle(ctx, order, input.PaymentID)
}

func (s *service) SettleFromGateway(ctx context.Context, gatewayOrderID, paymentID string) (*Result, error) {
	order, err := s.orders.FindByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	res, err := s.settle(ctx, order, paymentID)
	s.metrics.Verification(outcomeOf(err))
	return res, err
}

// settle runs the pending -> verified transition. The status guard on the
// update decides the single winner; everything else rides on that row lock.
func (s *service) settle(ctx context.Context, order *models.Order, paymentID string) (*Result, error) {
	switch order.Status {
	case enums.OrderStatusVerified:
		return nil, alreadyVerified()
	case enums.OrderStatusFailed:
		return nil, notPayable()
	}

	now := s.now()
	rec := events.NewRecorder(s.outbox)
	var (
		rows    []models.Purchase
		removed int64
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		orderRepo := s.orders.WithTx(tx)
		moved, err := orderRepo.MarkVerified(ctx, order.ID, paymentID, now)
		if err != nil {
			return err
		}
		if !moved {
			status, err := orderRepo.StatusOf(ctx, order.ID)
			if err != nil {
				return err
			}
			if status == enums.OrderStatusFailed {
				return errNotPayable
			}
			return errAlreadySettled
		}

		rows = make([]models.Purchase, 0, len(order.Items))
		for _, it := range order.Items {
			rows = append(rows, models.Purchase{
				ID:             uuid.New(),
				UserID:         order.UserID,
				OrderID:        order.ID,
				OrderItemID:    it.ID,
				GameID:         it.GameID,
				EditionID:      it.EditionID,
				DLCID:          it.DLCID,
				Edition:        it.Label,
				PricePaidCents: it.UnitPriceCents,
				Currency:       order.Currency,
				PurchasedAt:    now,
			})
		}
		if err := s.purchases.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errAlreadySettled
			}
			return err
		}

		cartRepo := s.cart.WithTx(tx)
		removed, err = s.clearSettledLines(ctx, cartRepo, order)
		if err != nil {
			return err
		}

		if err := rec.Emit(ctx, tx, verifiedEvent(order, paymentID, now, rows, removed > 0)); err != nil {
			return err
		}
		if removed == 0 {
			return nil
		}
		remaining, err := cartRepo.CountByUser(ctx, order.UserID)
		if err != nil {
			return err
		}
		action := payloads.CartActionRemoved
		if remaining == 0 {
			action = payloads.CartActionCleared
		}
		return rec.Emit(ctx, tx, cart.ChangedEvent(order.UserID, remaining, action))
	})
	switch {
	case errors.Is(err, errAlreadySettled):
		return nil, alreadyVerified()
	case errors.Is(err, errNotPayable):
		return nil, notPayable()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
	}
	rec.Flush(ctx, s.bus)

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, order.UserID.String()), order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_id": paymentID,
			"purchases":  len(rows),
			"expired":    now.After(order.ExpiresAt),
		})
		s.logg.Info(logCtx, "order verified")
	}

	res := &Result{
		OrderID:     order.GatewayOrderID,
		Status:      enums.OrderStatusVerified,
		PaymentID:   paymentID,
		Purchases:   make([]purchases.View, 0, len(rows)),
		CartCleared: removed > 0,
	}
	for _, p := range rows {
		res.Purchases = append(res.Purchases, purchases.ViewOf(p))
	}
	return res, nil
}

// clearSettledLines removes the cart lines an order paid for. Cart orders
// carry the line ids; a single item purchase drops any cart line for the same item.
func (s *service) clearSettledLines(ctx context.Context, repo *cart.Repository, order *models.Order) (int64, error) {
	if order.Source == enums.OrderSourceCart {
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, it := range order.Items {
			if it.CartItemID != nil {
				ids = append(ids, *it.CartItemID)
			}
		}
		return repo.DeleteByIDs(ctx, order.UserID, ids)
	}

	var removed int64
	for _, it := range order.Items {
		line, err := repo.FindMatching(ctx, order.UserID, catalog.ItemSpec{GameID: it.GameID, EditionID: it.EditionID, DLCID: it.DLCID})
		if err != nil {
			if db.IsNotFound(err) {
				continue
			}
			return removed, err
		}
		ok, err := repo.Delete(ctx, order.UserID, line.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func verifiedEvent(order *models.Order, paymentID string, at time.Time, rows []models.Purchase, cartCleared bool) outbox.DomainEvent {
	lines := make([]payloads.PurchaseLine, 0, len(rows))
	for _, p := range rows {
		lines = append(lines, payloads.PurchaseLine{
			PurchaseID:     p.ID,
			GameID:         p.GameID,
			EditionID:      p.EditionID,
			DLCID:          p.DLCID,
			Label:          p.Edition,
			PricePaidCents: p.PricePaidCents,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderVerified,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID},
		Data: payloads.OrderVerifiedEvent{
			OrderID:        order.ID,
			GatewayOrderID: order.GatewayOrderID,
			PaymentID:      paymentID,
			UserID:         order.UserID,
			Source:         order.Source,
			AmountCents:    order.AmountCents,
			Currency:       order.Currency,
			VerifiedAt:     at,
			Purchases:      lines,
			CartCleared:    cartCleared,
		},
	}
}

func alreadyVerified() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyVerified, "payment was already verified")
}

func notPayable() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer payable")
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeVerified
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeAlreadyVerified:
		return metrics.OutcomeAlreadyVerified
	case pkgerrors.CodeSignatureMismatch:
		return metrics.OutcomeSignatureMismatch
	case pkgerrors.CodeOrderNotFound:
		return metrics.OutcomeOrderNotFound
	case pkgerrors.CodeStateConflict:
		return metrics.OutcomeStateConflict
	}
	return metrics.OutcomeError
}
