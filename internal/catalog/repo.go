package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

// Repository reads catalog tables. It never writes.
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

// lookup holds the rows needed to resolve a batch of specs.
type lookup struct {
	games    map[uuid.UUID]models.Game
	editions map[uuid.UUID]models.Edition
	dlcs     map[uuid.UUID]models.DLC
}

// loadLookup fetches every referenced game, edition and DLC in three queries.
func (r *Repository) loadLookup(ctx context.Context, specs []ItemSpec) (*lookup, error) {
	var gameIDs, editionIDs, dlcIDs []uuid.UUID
	for _, spec := range specs {
		gameIDs = append(gameIDs, spec.GameID)
		if spec.EditionID != nil {
			editionIDs = append(editionIDs, *spec.EditionID)
		}
		if spec.DLCID != nil {
			dlcIDs = append(dlcIDs, *spec.DLCID)
		}
	}

	out := &lookup{
		games:    map[uuid.UUID]models.Game{},
		editions: map[uuid.UUID]models.Edition{},
		dlcs:     map[uuid.UUID]models.DLC{},
	}
	db := r.db.WithContext(ctx)

	if len(gameIDs) > 0 {
		var games []models.Game
		if err := db.Where("id IN ?", gameIDs).Find(&games).Error; err != nil {
			return nil, err
		}
		for _, g := range games {
			out.games[g.ID] = g
		}
	}
	if len(editionIDs) > 0 {
		var editions []models.Edition
		if err := db.Where("id IN ?", editionIDs).Find(&editions).Error; err != nil {
			return nil, err
		}
		for _, e := range editions {
			out.editions[e.ID] = e
		}
	}
	if len(dlcIDs) > 0 {
		var dlcs []models.DLC
		if err := db.Where("id IN ?", dlcIDs).Find(&dlcs).Error; err != nil {
			return nil, err
		}
		for _, d := range dlcs {
			out.dlcs[d.ID] = d
		}
	}
	return out, nil
}

func (r *Repository) ListApprovedGames(ctx context.Context, params pagination.Params) ([]models.Game, error) {
	q, err := pagination.Apply(r.db.WithContext(ctx).Model(&models.Game{}).Where("approved = ?", true), "created_at", params)
	if err != nil {
		return nil, err
	}
	var games []models.Game
	if err := q.Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func approvedByPrice(db *gorm.DB) *gorm.DB {
	return db.Where("approved = ?", true).Order("price_cents ASC")
}

// FindApprovedGame loads an approved game with its approved editions and DLCs.
func (r *Repository) FindApprovedGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).
		Preload("Editions", approvedByPrice).
		Preload("DLCs", approvedByPrice).
		Where("id = ? AND approved = ?", id, true).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}
