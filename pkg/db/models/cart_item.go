package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one selected purchasable in a user's cart. UnitPriceCents is the
// price seen when the item was added; totals are always recomputed from the catalog.
type CartItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	GameID         uuid.UUID  `gorm:"column:game_id;type:uuid;not null"`
	EditionID      *uuid.UUID `gorm:"column:edition_id;type:uuid"`
	DLCID          *uuid.UUID `gorm:"column:dlc_id;type:uuid"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	AddedAt        time.Time  `gorm:"column:added_at;autoCreateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
