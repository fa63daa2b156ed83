package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/money"
)

// CreateInput selects what the order is built from. Item is required for
// single_item orders and ignored for cart orders.
type CreateInput struct {
	Source enums.OrderSource
	Item   *catalog.ItemSpec
}

// View is returned to the client so it can open the gateway checkout.
type View struct {
	OrderID      string            `json:"order_id"`
	ID           uuid.UUID         `json:"id"`
	Source       enums.OrderSource `json:"source"`
	Amount       money.Amount      `json:"amount"`
	AmountCents  int64             `json:"amount_cents"`
	Currency     string            `json:"currency"`
	ClientSecret string            `json:"client_secret,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Reused       bool              `json:"reused"`
	Items        []ItemView        `json:"items"`
}

type ItemView struct {
	GameID    uuid.UUID    `json:"game_id"`
	EditionID *uuid.UUID   `json:"edition_id,omitempty"`
	DLCID     *uuid.UUID   `json:"dlc_id,omitempty"`
	Label     string       `json:"label"`
	UnitPrice money.Amount `json:"unit_price"`
}

// line is one priced order line before it is persisted.
type line struct {
	cartItemID *uuid.UUID
	item       catalog.ResolvedItem
}
