package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
)

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

// Create inserts the order and its item snapshots.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindReusable returns the newest pending, unexpired order with the same
// fingerprint and amount, or gorm.ErrRecordNotFound.
func (r *Repository) FindReusable(ctx context.Context, userID uuid.UUID, fingerprint string, amountCents int64, now time.Time) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND items_fingerprint = ? AND amount_cents = ? AND expires_at > ?",
			userID, enums.OrderStatusPending, fingerprint, amountCents, now).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByGatewayID loads an order and its items by the gateway order id.
func (r *Repository) FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkVerified moves a pending order to verified. It reports false when the
// order was not pending, so exactly one caller wins.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID, paymentID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":      enums.OrderStatusVerified,
			"payment_id":  paymentID,
			"verified_at": at,
			"updated_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed moves a pending order to failed under the same guard as MarkVerified.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason enums.OrderFailureReason, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":         enums.OrderStatusFailed,
			"failure_reason": string(reason),
			"updated_at":     at,
		})
	return res.RowsAffected == 1, res.Error
}

// FindExpiredPending lists pending orders whose expiry is before cutoff, oldest first.
func (r *Repository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.OrderStatusPending, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) StatusOf(ctx context.Context, id uuid.UUID) (enums.OrderStatus, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Select("status").First(&order, "id = ?", id).Error; err != nil {
		return "", err
	}
	return order.Status, nil
}
