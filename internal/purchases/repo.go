package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/pagination"
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

func (r *Repository) CreateBatch(ctx context.Context, rows []models.Purchase) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindForUser scopes the lookup to the owner so foreign ids read as missing.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.WithContext(ctx).First(&p, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("purchased_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListByUser pages through a user's purchases newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Purchase, error) {
	q, err := pagination.Apply(r.db.WithContext(ctx).Where("user_id = ?", userID), "purchased_at", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Purchase
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestRefundStatuses maps each purchase to the status of its newest refund.
// Purchases without refunds are absent from the map.
func (r *Repository) LatestRefundStatuses(ctx context.Context, purchaseIDs []uuid.UUID) (map[uuid.UUID]enums.RefundStatus, error) {
	out := make(map[uuid.UUID]enums.RefundStatus, len(purchaseIDs))
	if len(purchaseIDs) == 0 {
		return out, nil
	}
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("purchase_id IN ?", purchaseIDs).
		Order("created_at DESC").Order("id DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, err
	}
	for _, ref := range refunds {
		if _, seen := out[ref.PurchaseID]; !seen {
			out[ref.PurchaseID] = ref.Status
		}
	}
	return out, nil
}

// GameTitles resolves display titles for the given games, approved or not.
func (r *Repository) GameTitles(ctx context.Context, gameIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(gameIDs))
	if len(gameIDs) == 0 {
		return out, nil
	}
	var games []models.Game
	if err := r.db.WithContext(ctx).Select("id", "title").Where("id IN ?", gameIDs).Find(&games).Error; err != nil {
		return nil, err
	}
	for _, g := range games {
		out[g.ID] = g.Title
	}
	return out, nil
}

// SetRevoked stamps revoked_at once. It reports false when the purchase was
// already revoked.
func (r *Repository) SetRevoked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	return res.RowsAffected == 1, res.Error
}

// OwnedGameIDs lists the distinct games a user holds a live purchase for.
func (r *Repository) OwnedGameIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Distinct().
		Order("game_id").
		Pluck("game_id", &ids).Error
	return ids, err
}
