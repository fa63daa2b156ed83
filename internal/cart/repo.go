package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/pkg/db/models"
)

// Repository manages persistent cart lines.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindMatching returns the line holding exactly this spec, or gorm.ErrRecordNotFound.
func (r *Repository) FindMatching(ctx context.Context, userID uuid.UUID, spec catalog.ItemSpec) (*models.CartItem, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, spec.GameID)
	if spec.EditionID != nil {
		q = q.Where("edition_id = ?", *spec.EditionID)
	} else {
		q = q.Where("edition_id IS NULL")
	}
	if spec.DLCID != nil {
		q = q.Where("dlc_id = ?", *spec.DLCID)
	} else {
		q = q.Where("dlc_id IS NULL")
	}
	var item models.CartItem
	if err := q.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Delete removes one line owned by userID and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

// DeleteByIDs consumes settled lines. Lines already gone are ignored.
func (r *Repository) DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
