package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// Refund is a user request to reverse a purchase, decided by an admin.
type Refund struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID uuid.UUID          `gorm:"column:purchase_id;type:uuid;not null;index"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Reason     string             `gorm:"column:reason;not null"`
	Status     enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	ReviewedBy *uuid.UUID         `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt *time.Time         `gorm:"column:reviewed_at"`
	ReviewNote *string            `gorm:"column:review_note"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
