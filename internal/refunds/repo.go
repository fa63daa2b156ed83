package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

// openStatuses block a new request for the same purchase.
var openStatuses = []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusApproved}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.WithContext(ctx).First(&refund, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

// HasOpen reports whether the purchase already has a pending or approved refund.
func (r *Repository) HasOpen(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("purchase_id = ? AND status IN ?", purchaseID, openStatuses).
		Count(&n).Error
	return n > 0, err
}

// MarkReviewed applies a decision to a pending refund. It reports false when
// the refund was already decided.
func (r *Repository) MarkReviewed(ctx context.Context, id uuid.UUID, status enums.RefundStatus, reviewer uuid.UUID, note *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", id, enums.RefundStatusPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": at,
			"review_note": note,
			"updated_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

// List pages the review queue newest first, optionally narrowed to one status.
func (r *Repository) List(ctx context.Context, status *enums.RefundStatus, params pagination.Params) ([]models.Refund, error) {
	q := r.db.WithContext(ctx).Model(&models.Refund{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	return r.page(q, params)
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Refund, error) {
	return r.page(r.db.WithContext(ctx).Where("user_id = ?", userID), params)
}

func (r *Repository) page(q *gorm.DB, params pagination.Params) ([]models.Refund, error) {
	q, err := pagination.Apply(q, "created_at", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Refund
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
