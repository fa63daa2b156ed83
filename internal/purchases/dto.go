package purchases

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/money"
)

// View is a ledger row as shown to its owner.
type View struct {
	ID           uuid.UUID           `json:"id"`
	OrderID      uuid.UUID           `json:"order_id"`
	GameID       uuid.UUID           `json:"game_id"`
	EditionID    *uuid.UUID          `json:"edition_id,omitempty"`
	DLCID        *uuid.UUID          `json:"dlc_id,omitempty"`
	Title        string              `json:"title,omitempty"`
	Edition      string              `json:"edition"`
	PricePaid    money.Amount        `json:"price_paid"`
	PurchasedAt  time.Time           `json:"purchased_at"`
	RevokedAt    *time.Time          `json:"revoked_at,omitempty"`
	RefundStatus *enums.RefundStatus `json:"refund_status,omitempty"`
}

func ViewOf(p models.Purchase) View {
	return View{
		ID:          p.ID,
		OrderID:     p.OrderID,
		GameID:      p.GameID,
		EditionID:   p.EditionID,
		DLCID:       p.DLCID,
		Edition:     p.Edition,
		PricePaid:   money.New(p.PricePaidCents, p.Currency),
		PurchasedAt: p.PurchasedAt,
		RevokedAt:   p.RevokedAt,
	}
}
