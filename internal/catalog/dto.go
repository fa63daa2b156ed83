package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/money"
)

// ItemSpec names a purchasable: a game, optionally narrowed to one edition or one DLC.
type ItemSpec struct {
	GameID    uuid.UUID
	EditionID *uuid.UUID
	DLCID     *uuid.UUID
}

// Key identifies the item independent of pointer identity.
func (s ItemSpec) Key() string {
	key := s.GameID.String()
	if s.EditionID != nil {
		key += "/e/" + s.EditionID.String()
	}
	if s.DLCID != nil {
		key += "/d/" + s.DLCID.String()
	}
	return key
}

// ResolvedItem is a spec checked against the catalog with its current price.
type ResolvedItem struct {
	GameID         uuid.UUID
	EditionID      *uuid.UUID
	DLCID          *uuid.UUID
	Title          string
	Label          string
	UnitPriceCents int64
	Currency       string
}

func (r ResolvedItem) Spec() ItemSpec {
	return ItemSpec{GameID: r.GameID, EditionID: r.EditionID, DLCID: r.DLCID}
}

// Resolution is the outcome for one spec of a batch lookup. Err carries the
// InvalidReference reason when Available is false.
type Resolution struct {
	Spec      ItemSpec
	Item      ResolvedItem
	Available bool
	Err       error
}

type GameSummary struct {
	ID        uuid.UUID    `json:"id"`
	Title     string       `json:"title"`
	Slug      string       `json:"slug"`
	Developer string       `json:"developer"`
	Price     money.Amount `json:"price"`
	ListPrice money.Amount `json:"list_price"`
	OnSale    bool         `json:"on_sale"`
	CreatedAt time.Time    `json:"created_at"`
}

type EditionSummary struct {
	ID     uuid.UUID    `json:"id"`
	Name   string       `json:"name"`
	Price  money.Amount `json:"price"`
	OnSale bool         `json:"on_sale"`
}

type DLCSummary struct {
	ID     uuid.UUID    `json:"id"`
	Title  string       `json:"title"`
	Price  money.Amount `json:"price"`
	OnSale bool         `json:"on_sale"`
}

type GameDetail struct {
	GameSummary
	Editions []EditionSummary `json:"editions"`
	DLCs     []DLCSummary     `json:"dlcs"`
}
