package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/dbtest"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

func newService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), "USD")
	require.NoError(t, err)
	return svc, conn
}

func int64Ptr(v int64) *int64 { return &v }

func TestResolveBaseGameUsesSalePrice(t *testing.T) {
	svc, conn := newService(t)
	game := dbtest.SeedGame(t, conn, "Hollow Orbit", 2000)
	require.NoError(t, conn.Model(&game).Update("sale_price_cents", 1500).Error)

	item, err := svc.Resolve(context.Background(), ItemSpec{GameID: game.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), item.UnitPriceCents)
	assert.Equal(t, "Hollow Orbit", item.Title)
	assert.Equal(t, standardEditionLabel, item.Label)
	assert.Equal(t, "USD", item.Currency)
}

func TestResolveEditionAndDLC(t *testing.T) {
	svc, conn := newService(t)
	game := dbtest.SeedGame(t, conn, "Skyforge", 3000)
	edition := models.Edition{GameID: game.ID, Name: "Deluxe", PriceCents: 4500, Approved: true}
	dlc := models.DLC{GameID: game.ID, Title: "Frost Pack", PriceCents: 900, SalePriceCents: int64Ptr(1200), Approved: true}
	require.NoError(t, conn.Create(&edition).Error)
	require.NoError(t, conn.Create(&dlc).Error)

	item, err := svc.Resolve(context.Background(), ItemSpec{GameID: game.ID, EditionID: &edition.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(4500), item.UnitPriceCents)
	assert.Equal(t, "Deluxe", item.Label)
	require.NotNil(t, item.EditionID)

	item, err = svc.Resolve(context.Background(), ItemSpec{GameID: game.ID, DLCID: &dlc.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(900), item.UnitPriceCents, "sale price above list is ignored")
	assert.Equal(t, "DLC: Frost Pack", item.Label)
}

func TestResolveInvalidReferences(t *testing.T) {
	svc, conn := newService(t)
	game := dbtest.SeedGame(t, conn, "Skyforge", 3000)
	other := dbtest.SeedGame(t, conn, "Other", 1000)
	hidden := dbtest.SeedGame(t, conn, "Hidden", 1000)
	require.NoError(t, conn.Model(&hidden).Update("approved", false).Error)

	foreignEdition := models.Edition{GameID: other.ID, Name: "Gold", PriceCents: 100, Approved: true}
	unapprovedDLC := models.DLC{GameID: game.ID, Title: "Draft", PriceCents: 100}
	require.NoError(t, conn.Create(&foreignEdition).Error)
	require.NoError(t, conn.Create(&unapprovedDLC).Error)
	require.NoError(t, conn.Model(&unapprovedDLC).Update("approved", false).Error)

	missing := uuid.New()
	cases := map[string]ItemSpec{
		"unknown game":    {GameID: uuid.New()},
		"unapproved game": {GameID: hidden.ID},
		"foreign edition": {GameID: game.ID, EditionID: &foreignEdition.ID},
		"missing edition": {GameID: game.ID, EditionID: &missing},
		"unapproved dlc":  {GameID: game.ID, DLCID: &unapprovedDLC.ID},
	}
	for name, spec := range cases {
		_, err := svc.Resolve(context.Background(), spec)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReference), "%s: got %v", name, err)
	}
}

func TestResolveRejectsMalformedSpec(t *testing.T) {
	svc, _ := newService(t)
	id := uuid.New()

	_, err := svc.Resolve(context.Background(), ItemSpec{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Resolve(context.Background(), ItemSpec{GameID: id, EditionID: &id, DLCID: &id})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestResolveManyReportsAvailability(t *testing.T) {
	svc, conn := newService(t)
	live := dbtest.SeedGame(t, conn, "Live", 1000)
	pulled := dbtest.SeedGame(t, conn, "Pulled", 1500)
	require.NoError(t, conn.Model(&pulled).Update("approved", false).Error)

	out, err := svc.ResolveMany(context.Background(), []ItemSpec{{GameID: live.ID}, {GameID: pulled.ID}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Available)
	assert.Equal(t, int64(1000), out[0].Item.UnitPriceCents)
	assert.False(t, out[1].Available)
	assert.Equal(t, "Pulled", out[1].Item.Title)
	assert.True(t, pkgerrors.IsCode(out[1].Err, pkgerrors.CodeInvalidReference))
}

func TestResolveRejectsGamesPricedInAnotherCurrency(t *testing.T) {
	svc, conn := newService(t)
	domestic := dbtest.SeedGame(t, conn, "Domestic", 1000)
	imported := dbtest.SeedGame(t, conn, "Imported", 1500)
	require.NoError(t, conn.Model(&imported).Update("currency", "JPY").Error)

	_, err := svc.Resolve(context.Background(), ItemSpec{GameID: imported.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidReference))

	out, err := svc.ResolveMany(context.Background(), []ItemSpec{{GameID: domestic.ID}, {GameID: imported.ID}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Available)
	assert.False(t, out[1].Available)
	assert.Equal(t, "JPY", out[1].Item.Currency)

	lower, err := NewService(NewRepository(conn), " jpy ")
	require.NoError(t, err)
	item, err := lower.Resolve(context.Background(), ItemSpec{GameID: imported.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), item.UnitPriceCents)
}

func TestListGamesPaginatesApprovedOnly(t *testing.T) {
	svc, conn := newService(t)
	for _, title := range []string{"A", "B", "C"} {
		dbtest.SeedGame(t, conn, title, 1000)
	}
	hidden := dbtest.SeedGame(t, conn, "Hidden", 1000)
	require.NoError(t, conn.Model(&hidden).Update("approved", false).Error)

	first, err := svc.ListGames(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListGames(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, g := range append(first.Items, second.Items...) {
		assert.NotEqual(t, "Hidden", g.Title)
		seen[g.ID] = true
	}
	assert.Len(t, seen, 3)

	_, err = svc.ListGames(context.Background(), pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetGameIncludesApprovedChildren(t *testing.T) {
	svc, conn := newService(t)
	game := dbtest.SeedGame(t, conn, "Skyforge", 3000)
	require.NoError(t, conn.Create(&models.Edition{GameID: game.ID, Name: "Deluxe", PriceCents: 4500, Approved: true}).Error)
	draft := models.Edition{GameID: game.ID, Name: "Draft", PriceCents: 100}
	require.NoError(t, conn.Create(&draft).Error)
	require.NoError(t, conn.Model(&draft).Update("approved", false).Error)

	detail, err := svc.GetGame(context.Background(), game.ID)
	require.NoError(t, err)
	require.Len(t, detail.Editions, 1)
	assert.Equal(t, "Deluxe", detail.Editions[0].Name)
	assert.Equal(t, "45.00 USD", detail.Editions[0].Price.Display)

	_, err = svc.GetGame(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
