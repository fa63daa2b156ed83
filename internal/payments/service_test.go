package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/dbtest"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
)

type stubGateway struct {
	seq int
}

func (s *stubGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (gateway.Order, error) {
	s.seq++
	return gateway.Order{ID: "pi_" + uuid.NewString(), AmountCents: in.AmountCents, Currency: in.Currency}, nil
}

type fixture struct {
	conn     *gorm.DB
	cart     *cart.Repository
	orderSvc orders.Service
	orders   *orders.Repository
	svc      Service
	signer   *gateway.Signer
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	cat, err := catalog.NewService(catalog.NewRepository(conn), "USD")
	require.NoError(t, err)
	signer, err := gateway.NewSigner("callback-secret")
	require.NoError(t, err)

	f := &fixture{
		conn:   conn,
		cart:   cart.NewRepository(conn),
		orders: orders.NewRepository(conn),
		signer: signer,
		now:    time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	tx := db.NewFromConn(conn)

	f.orderSvc, err = orders.NewService(orders.Deps{
		Repo:     f.orders,
		CartRepo: f.cart,
		Tx:       tx,
		Catalog:  cat,
		Gateway:  &stubGateway{},
		Outbox:   emitter,
		Logger:   logger.Nop(),
		OrderTTL: 30 * time.Minute,
		Clock:    clock,
	})
	require.NoError(t, err)

	f.svc, err = NewService(Deps{
		Orders:    f.orders,
		Cart:      f.cart,
		Purchases: purchases.NewRepository(conn),
		Tx:        tx,
		Signer:    signer,
		Outbox:    emitter,
		Logger:    logger.Nop(),
		Clock:     clock,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) fillCart(t *testing.T, userID uuid.UUID, prices ...int64) []models.Game {
	t.Helper()
	games := make([]models.Game, 0, len(prices))
	for i, price := range prices {
		g := dbtest.SeedGame(t, f.conn, "Game "+string(rune('A'+i)), price)
		require.NoError(t, f.cart.Create(context.Background(), &models.CartItem{UserID: userID, GameID: g.ID, UnitPriceCents: price}))
		games = append(games, g)
	}
	return games
}

func (f *fixture) cartOrder(t *testing.T, userID uuid.UUID) *orders.View {
	t.Helper()
	view, err := f.orderSvc.CreateOrder(context.Background(), userID, orders.CreateInput{Source: enums.OrderSourceCart})
	require.NoError(t, err)
	return view
}

func (f *fixture) input(orderID, paymentID string) VerifyInput {
	return VerifyInput{OrderID: orderID, PaymentID: paymentID, Signature: f.signer.Sign(orderID, paymentID)}
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestVerifyPaymentSettlesCartOrder(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000, 1500)
	order := f.cartOrder(t, userID)

	res, err := f.svc.VerifyPayment(context.Background(), userID, f.input(order.OrderID, "ch_1"))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusVerified, res.Status)
	assert.Len(t, res.Purchases, 2)
	assert.True(t, res.CartCleared)

	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusVerified, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "ch_1", *stored.PaymentID)
	assert.NotNil(t, stored.VerifiedAt)

	assert.Equal(t, int64(2), f.count(t, &models.Purchase{}, "user_id = ?", userID))
	assert.Zero(t, f.count(t, &models.CartItem{}, "user_id = ?", userID))
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderVerified))
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventCartChanged, userID))
}

func TestVerifyPaymentTwiceYieldsOneSetOfPurchases(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000)
	order := f.cartOrder(t, userID)
	in := f.input(order.OrderID, "ch_1")

	_, err := f.svc.VerifyPayment(context.Background(), userID, in)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(context.Background(), userID, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyVerified))

	assert.Equal(t, int64(1), f.count(t, &models.Purchase{}, "order_id = ?", order.ID))
}

func TestSettleLosesCompareAndSetOnStaleRead(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000)
	view := f.cartOrder(t, userID)

	stale, err := f.orders.FindByGatewayID(context.Background(), view.OrderID)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(context.Background(), userID, f.input(view.OrderID, "ch_1"))
	require.NoError(t, err)

	_, err = f.svc.(*service).settle(context.Background(), stale, "ch_2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyVerified))
	assert.Equal(t, int64(1), f.count(t, &models.Purchase{}, "order_id = ?", view.ID))
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000)
	order := f.cartOrder(t, userID)

	in := f.input(order.OrderID, "ch_1")
	last := in.Signature[len(in.Signature)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	in.Signature = in.Signature[:len(in.Signature)-1] + string(replacement)

	_, err := f.svc.VerifyPayment(context.Background(), userID, in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureMismatch))

	in = f.input(order.OrderID, "ch_1")
	in.PaymentID = "ch_2"
	_, err = f.svc.VerifyPayment(context.Background(), userID, in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureMismatch))

	assert.Zero(t, f.count(t, &models.Purchase{}, "user_id = ?", userID))
	var stored models.Order
	require.NoError(t, f.conn.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, int64(1), f.count(t, &models.CartItem{}, "user_id = ?", userID))
}

func TestVerifyPaymentHidesForeignOrders(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	f.fillCart(t, owner, 1000)
	order := f.cartOrder(t, owner)

	_, err := f.svc.VerifyPayment(context.Background(), uuid.New(), f.input(order.OrderID, "ch_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))

	_, err = f.svc.VerifyPayment(context.Background(), owner, f.input("pi_missing", "ch_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))
}

func TestVerifyPaymentOnFailedOrderConflicts(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000)
	order := f.cartOrder(t, userID)

	moved, err := f.orderSvc.FailOrder(context.Background(), order.ID, enums.OrderFailureGatewayDeclined)
	require.NoError(t, err)
	require.True(t, moved)

	_, err = f.svc.VerifyPayment(context.Background(), userID, f.input(order.OrderID, "ch_1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Zero(t, f.count(t, &models.Purchase{}, "user_id = ?", userID))
}

func TestVerifyPaymentSettlesExpiredPendingOrder(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.fillCart(t, userID, 1000)
	order := f.cartOrder(t, userID)

	f.now = order.ExpiresAt.Add(time.Minute)
	res, err := f.svc.VerifyPayment(context.Background(), userID, f.input(order.OrderID, "ch_late"))
	require.NoError(t, err)
	assert.Len(t, res.Purchases, 1)
}

func TestSingleItemSettlementDropsMatchingCartLine(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	games := f.fillCart(t, userID, 1000, 2000)

	view, err := f.orderSvc.CreateOrder(context.Background(), userID, orders.CreateInput{
		Source: enums.OrderSourceSingleItem,
		Item:   &catalog.ItemSpec{GameID: games[0].ID},
	})
	require.NoError(t, err)

	res, err := f.svc.VerifyPayment(context.Background(), userID, f.input(view.OrderID, "ch_1"))
	require.NoError(t, err)
	require.Len(t, res.Purchases, 1)
	assert.Equal(t, games[0].ID, res.Purchases[0].GameID)
	assert.Equal(t, int64(1000), res.Purchases[0].PricePaid.Cents)

	var remaining []models.CartItem
	require.NoError(t, f.conn.Where("user_id = ?", userID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, games[1].ID, remaining[0].GameID)
}
