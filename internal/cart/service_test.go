package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/dbtest"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
)

type harness struct {
	svc  Service
	conn *gorm.DB
	bus  *events.Bus
}

func newHarness(t *testing.T, badge *BadgeCache) harness {
	t.Helper()
	conn := dbtest.Open(t)
	cat, err := catalog.NewService(catalog.NewRepository(conn), "USD")
	require.NoError(t, err)
	bus := events.NewBus(logger.Nop())
	if badge != nil {
		badge.Register(bus)
	}
	svc, err := NewService(Deps{
		Repo:    NewRepository(conn),
		Tx:      db.NewFromConn(conn),
		Catalog: cat,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Bus:     bus,
		Badge:   badge,
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, bus: bus}
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestCartTotalsFollowAddAndRemove(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	g1 := dbtest.SeedGame(t, h.conn, "G1", 1000)
	g2 := dbtest.SeedGame(t, h.conn, "G2", 1500)

	line1, err := h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: g1.ID})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: g2.ID})
	require.NoError(t, err)

	view, err := h.svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), view.TotalCents)
	assert.Equal(t, "25.00 USD", view.Total.Display)
	assert.Len(t, view.Items, 2)

	require.NoError(t, h.svc.RemoveItem(ctx, userID, line1.ID))

	view, err = h.svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), view.TotalCents)
	require.Len(t, view.Items, 1)
	assert.Equal(t, g2.ID, view.Items[0].GameID)

	assert.Equal(t, int64(3), countEvents(t, h.conn, enums.EventCartChanged))
}

func TestAddItemTwiceKeepsOneLine(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	game := dbtest.SeedGame(t, h.conn, "Solo", 999)

	first, err := h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: game.ID})
	require.NoError(t, err)
	second, err := h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: game.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := h.svc.CountItems(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), countEvents(t, h.conn, enums.EventCartChanged))
}

func TestAddItemRejectsInvalidReference(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.AddItem(context.Background(), uuid.New(), catalog.ItemSpec{GameID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReference))
	assert.Zero(t, countEvents(t, h.conn, enums.EventCartChanged))
}

func TestRemoveItemOwnedByAnotherUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	game := dbtest.SeedGame(t, h.conn, "Mine", 500)
	line, err := h.svc.AddItem(ctx, owner, catalog.ItemSpec{GameID: game.ID})
	require.NoError(t, err)

	err = h.svc.RemoveItem(ctx, uuid.New(), line.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = h.svc.RemoveItem(ctx, owner, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetCartRepricesAndSkipsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	onSale := dbtest.SeedGame(t, h.conn, "Discounted", 2000)
	pulled := dbtest.SeedGame(t, h.conn, "Pulled", 3000)

	_, err := h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: onSale.ID})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: pulled.ID})
	require.NoError(t, err)

	require.NoError(t, h.conn.Model(&onSale).Update("sale_price_cents", 1200).Error)
	require.NoError(t, h.conn.Model(&pulled).Update("approved", false).Error)

	view, err := h.svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), view.TotalCents)
	require.Len(t, view.Items, 2)
	byGame := map[uuid.UUID]LineView{}
	for _, line := range view.Items {
		byGame[line.GameID] = line
	}
	assert.True(t, byGame[onSale.ID].Available)
	assert.Equal(t, int64(2000), byGame[onSale.ID].AddedPriceCents)
	assert.Equal(t, int64(1200), byGame[onSale.ID].UnitPrice.Cents)
	assert.False(t, byGame[pulled.ID].Available)
	assert.Equal(t, "Pulled", byGame[pulled.ID].Title)
}

func TestCartOnlyTotalsStoreCurrency(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	dollars := dbtest.SeedGame(t, h.conn, "Dollars", 1000)
	yen := dbtest.SeedGame(t, h.conn, "Yen", 1500)

	_, err := h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: dollars.ID})
	require.NoError(t, err)
	_, err = h.svc.AddItem(ctx, userID, catalog.ItemSpec{GameID: yen.ID})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&yen).Update("currency", "JPY").Error)

	view, err := h.svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.TotalCents)
	assert.Equal(t, "USD", view.Total.Currency)
	require.Len(t, view.Items, 2)
	for _, line := range view.Items {
		assert.Equal(t, line.GameID == dollars.ID, line.Available)
	}

	_, err = h.svc.AddItem(ctx, uuid.New(), catalog.ItemSpec{GameID: yen.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReference))
}

func TestGetCartEmpty(t *testing.T) {
	h := newHarness(t, nil)
	view, err := h.svc.GetCart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalCents)
	assert.Equal(t, "USD", view.Total.Currency)
}
