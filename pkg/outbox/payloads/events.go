package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// CartChangedEvent is emitted whenever a user's cart gains or loses lines.
type CartChangedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	ItemCount int64     `json:"item_count"`
	Action    string    `json:"action"`
}

const (
	CartActionAdded   = "added"
	CartActionRemoved = "removed"
	CartActionCleared = "cleared"
)

// OrderCreatedEvent records a freshly reserved gateway order.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	GatewayOrderID string            `json:"gateway_order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	Source         enums.OrderSource `json:"source"`
	AmountCents    int64             `json:"amount_cents"`
	Currency       string            `json:"currency"`
	ItemCount      int               `json:"item_count"`
}

// PurchaseLine is one granted entitlement inside OrderVerifiedEvent.
type PurchaseLine struct {
	PurchaseID     uuid.UUID  `json:"purchase_id"`
	GameID         uuid.UUID  `json:"game_id"`
	EditionID      *uuid.UUID `json:"edition_id,omitempty"`
	DLCID          *uuid.UUID `json:"dlc_id,omitempty"`
	Label          string     `json:"label"`
	PricePaidCents int64      `json:"price_paid_cents"`
}

// OrderVerifiedEvent is emitted once per order when payment settles.
type OrderVerifiedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	GatewayOrderID string            `json:"gateway_order_id"`
	PaymentID      string            `json:"payment_id"`
	UserID         uuid.UUID         `json:"user_id"`
	Source         enums.OrderSource `json:"source"`
	AmountCents    int64             `json:"amount_cents"`
	Currency       string            `json:"currency"`
	VerifiedAt     time.Time         `json:"verified_at"`
	Purchases      []PurchaseLine    `json:"purchases"`
	CartCleared    bool              `json:"cart_cleared"`
}

// OrderFailedEvent covers expiry and gateway declines.
type OrderFailedEvent struct {
	OrderID        uuid.UUID                `json:"order_id"`
	GatewayOrderID string                   `json:"gateway_order_id"`
	UserID         uuid.UUID                `json:"user_id"`
	Reason         enums.OrderFailureReason `json:"reason"`
	FailedAt       time.Time                `json:"failed_at"`
}

type RefundRequestedEvent struct {
	RefundID   uuid.UUID `json:"refund_id"`
	PurchaseID uuid.UUID `json:"purchase_id"`
	UserID     uuid.UUID `json:"user_id"`
	Reason     string    `json:"reason"`
}

// RefundReviewedEvent carries the admin decision; approvals revoke the purchase.
type RefundReviewedEvent struct {
	RefundID       uuid.UUID          `json:"refund_id"`
	PurchaseID     uuid.UUID          `json:"purchase_id"`
	UserID         uuid.UUID          `json:"user_id"`
	GameID         uuid.UUID          `json:"game_id"`
	Status         enums.RefundStatus `json:"status"`
	ReviewedBy     uuid.UUID          `json:"reviewed_by"`
	ReviewNote     string             `json:"review_note,omitempty"`
	PricePaidCents int64              `json:"price_paid_cents"`
	Currency       string             `json:"currency"`
	ReviewedAt     time.Time          `json:"reviewed_at"`
}
