package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// Order is a gateway-tracked intent to pay. GatewayOrderID is the id the
// client and the gateway callback refer to.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	GatewayOrderID   string            `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	ClientSecret     *string           `gorm:"column:gateway_client_secret"`
	UserID           uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Source           enums.OrderSource `gorm:"column:source;type:order_source;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	AmountCents      int64             `gorm:"column:amount_cents;not null"`
	Currency         string            `gorm:"column:currency;not null"`
	PaymentID        *string           `gorm:"column:payment_id"`
	ItemsFingerprint string            `gorm:"column:items_fingerprint;not null"`
	FailureReason    *string           `gorm:"column:failure_reason"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;not null"`
	VerifiedAt       *time.Time        `gorm:"column:verified_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots one line at order creation time.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	CartItemID     *uuid.UUID `gorm:"column:cart_item_id;type:uuid"`
	GameID         uuid.UUID  `gorm:"column:game_id;type:uuid;not null"`
	EditionID      *uuid.UUID `gorm:"column:edition_id;type:uuid"`
	DLCID          *uuid.UUID `gorm:"column:dlc_id;type:uuid"`
	Label          string     `gorm:"column:label;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
