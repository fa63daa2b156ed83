package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/money"
)

// LineView is a cart line priced against the current catalog.
type LineView struct {
	ID              uuid.UUID    `json:"id"`
	GameID          uuid.UUID    `json:"game_id"`
	EditionID       *uuid.UUID   `json:"edition_id,omitempty"`
	DLCID           *uuid.UUID   `json:"dlc_id,omitempty"`
	Title           string       `json:"title"`
	Label           string       `json:"label"`
	UnitPrice       money.Amount `json:"unit_price"`
	AddedPriceCents int64        `json:"added_price_cents"`
	Available       bool         `json:"available"`
	AddedAt         time.Time    `json:"added_at"`
}

// View is the caller's cart. Total covers available lines only.
type View struct {
	Items      []LineView   `json:"items"`
	ItemCount  int          `json:"item_count"`
	TotalCents int64        `json:"total_cents"`
	Total      money.Amount `json:"total"`
}
