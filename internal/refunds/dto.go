package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
)

const (
	minReasonLen = 3
	maxReasonLen = 500
)

type RequestInput struct {
	PurchaseID uuid.UUID `json:"purchase_id" validate:"required"`
	Reason     string    `json:"reason" validate:"required,min=3,max=500"`
}

type ReviewInput struct {
	Decision enums.RefundDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Note     *string              `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// Reviewer is the authenticated caller deciding a refund.
type Reviewer struct {
	UserID uuid.UUID
	Role   enums.Role
}

type View struct {
	ID         uuid.UUID          `json:"id"`
	PurchaseID uuid.UUID          `json:"purchase_id"`
	UserID     uuid.UUID          `json:"user_id"`
	Reason     string             `json:"reason"`
	Status     enums.RefundStatus `json:"status"`
	ReviewedBy *uuid.UUID         `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time         `json:"reviewed_at,omitempty"`
	ReviewNote *string            `json:"review_note,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func viewOf(r models.Refund) View {
	return View{
		ID:         r.ID,
		PurchaseID: r.PurchaseID,
		UserID:     r.UserID,
		Reason:     r.Reason,
		Status:     r.Status,
		ReviewedBy: r.ReviewedBy,
		ReviewedAt: r.ReviewedAt,
		ReviewNote: r.ReviewNote,
		CreatedAt:  r.CreatedAt,
	}
}
