package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase grants library access for one settled order line. RevokedAt is
// the only field that changes after insert (approved refund).
type Purchase struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID    uuid.UUID  `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	GameID         uuid.UUID  `gorm:"column:game_id;type:uuid;not null"`
	EditionID      *uuid.UUID `gorm:"column:edition_id;type:uuid"`
	DLCID          *uuid.UUID `gorm:"column:dlc_id;type:uuid"`
	Edition        string     `gorm:"column:edition;not null"`
	PricePaidCents int64      `gorm:"column:price_paid_cents;not null"`
	Currency       string     `gorm:"column:currency;not null"`
	PurchasedAt    time.Time  `gorm:"column:purchased_at;not null"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
