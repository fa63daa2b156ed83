package types

import (
	"math/big"
	"time"
)

// PurchaseFactRow mirrors the purchase_facts BigQuery table: one row per
// purchased line.
type PurchaseFactRow struct {
	EventID        string    `bigquery:"event_id"`
	OccurredAt     time.Time `bigquery:"occurred_at"`
	OrderID        string    `bigquery:"order_id"`
	GatewayOrderID string    `bigquery:"gateway_order_id"`
	PurchaseID     string    `bigquery:"purchase_id"`
	UserID         string    `bigquery:"user_id"`
	GameID         string    `bigquery:"game_id"`
	EditionID      *string   `bigquery:"edition_id"`
	DLCID          *string   `bigquery:"dlc_id"`
	Label          string    `bigquery:"label"`
	Source         string    `bigquery:"source"`
	PricePaidCents int64     `bigquery:"price_paid_cents"`
	PricePaid      *big.Rat  `bigquery:"price_paid"`
	Currency       string    `bigquery:"currency"`
}

// RefundFactRow mirrors the refund_facts BigQuery table.
type RefundFactRow struct {
	EventID      string    `bigquery:"event_id"`
	OccurredAt   time.Time `bigquery:"occurred_at"`
	RefundID     string    `bigquery:"refund_id"`
	PurchaseID   string    `bigquery:"purchase_id"`
	UserID       string    `bigquery:"user_id"`
	GameID       string    `bigquery:"game_id"`
	Status       string    `bigquery:"status"`
	ReviewedBy   string    `bigquery:"reviewed_by"`
	RefundCents  int64     `bigquery:"refund_cents"`
	RefundAmount *big.Rat  `bigquery:"refund_amount"`
	Currency     string    `bigquery:"currency"`
}
