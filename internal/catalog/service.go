package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

const standardEditionLabel = "Standard Edition"

type store interface {
	loadLookup(ctx context.Context, specs []ItemSpec) (*lookup, error)
	ListApprovedGames(ctx context.Context, params pagination.Params) ([]models.Game, error)
	FindApprovedGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
}

// Service resolves purchasable items and serves catalog browsing.
type Service interface {
	Resolve(ctx context.Context, spec ItemSpec) (ResolvedItem, error)
	ResolveMany(ctx context.Context, specs []ItemSpec) ([]Resolution, error)
	ListGames(ctx context.Context, params pagination.Params) (pagination.Page[GameSummary], error)
	GetGame(ctx context.Context, id uuid.UUID) (*GameDetail, error)
}

type service struct {
	repo     store
	currency string
}

// NewService scopes purchasable items to the store currency; games priced in
// any other currency resolve as INVALID_REFERENCE.
func NewService(repo *Repository, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &service{repo: repo, currency: currency}, nil
}

// Resolve fails with INVALID_REFERENCE when the item cannot be bought.
func (s *service) Resolve(ctx context.Context, spec ItemSpec) (ResolvedItem, error) {
	if err := validateSpec(spec); err != nil {
		return ResolvedItem{}, err
	}
	lk, err := s.repo.loadLookup(ctx, []ItemSpec{spec})
	if err != nil {
		return ResolvedItem{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog")
	}
	return lk.resolve(spec, s.currency)
}

// ResolveMany reports availability per spec instead of failing the batch.
func (s *service) ResolveMany(ctx context.Context, specs []ItemSpec) ([]Resolution, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	lk, err := s.repo.loadLookup(ctx, specs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load catalog")
	}
	out := make([]Resolution, 0, len(specs))
	for _, spec := range specs {
		res := Resolution{Spec: spec}
		item, err := lk.resolve(spec, s.currency)
		if err != nil {
			res.Err = err
			res.Item = lk.describe(spec)
		} else {
			res.Item = item
			res.Available = true
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *service) ListGames(ctx context.Context, params pagination.Params) (pagination.Page[GameSummary], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[GameSummary]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	games, err := s.repo.ListApprovedGames(ctx, params)
	if err != nil {
		return pagination.Page[GameSummary]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list games")
	}
	summaries := make([]GameSummary, 0, len(games))
	for _, g := range games {
		summaries = append(summaries, summarizeGame(g))
	}
	return pagination.Build(summaries, params.Limit, func(g GameSummary) pagination.Cursor {
		return pagination.Cursor{At: g.CreatedAt, ID: g.ID}
	}), nil
}

func (s *service) GetGame(ctx context.Context, id uuid.UUID) (*GameDetail, error) {
	game, err := s.repo.FindApprovedGame(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game")
	}

	detail := &GameDetail{
		GameSummary: summarizeGame(*game),
		Editions:    make([]EditionSummary, 0, len(game.Editions)),
		DLCs:        make([]DLCSummary, 0, len(game.DLCs)),
	}
	for _, e := range game.Editions {
		detail.Editions = append(detail.Editions, EditionSummary{
			ID:     e.ID,
			Name:   e.Name,
			Price:  money.New(e.CurrentPriceCents(), game.Currency),
			OnSale: e.CurrentPriceCents() < e.PriceCents,
		})
	}
	for _, d := range game.DLCs {
		detail.DLCs = append(detail.DLCs, DLCSummary{
			ID:     d.ID,
			Title:  d.Title,
			Price:  money.New(d.CurrentPriceCents(), game.Currency),
			OnSale: d.CurrentPriceCents() < d.PriceCents,
		})
	}
	return detail, nil
}

func summarizeGame(g models.Game) GameSummary {
	return GameSummary{
		ID:        g.ID,
		Title:     g.Title,
		Slug:      g.Slug,
		Developer: g.Developer,
		Price:     money.New(g.CurrentPriceCents(), g.Currency),
		ListPrice: money.New(g.PriceCents, g.Currency),
		OnSale:    g.CurrentPriceCents() < g.PriceCents,
		CreatedAt: g.CreatedAt,
	}
}

func validateSpec(spec ItemSpec) error {
	if spec.GameID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "game_id is required")
	}
	if spec.EditionID != nil && spec.DLCID != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "edition_id and dlc_id are mutually exclusive")
	}
	return nil
}

var errUnavailable = errors.New("unavailable")

func invalidReference(msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeInvalidReference, errUnavailable, msg)
}

func (lk *lookup) resolve(spec ItemSpec, currency string) (ResolvedItem, error) {
	if err := validateSpec(spec); err != nil {
		return ResolvedItem{}, err
	}
	game, ok := lk.games[spec.GameID]
	if !ok || !game.Approved {
		return ResolvedItem{}, invalidReference("game not found")
	}
	if !strings.EqualFold(game.Currency, currency) {
		return ResolvedItem{}, invalidReference(fmt.Sprintf("game is not sold in %s", currency))
	}

	item := ResolvedItem{
		GameID:   game.ID,
		Title:    game.Title,
		Currency: game.Currency,
	}
	switch {
	case spec.EditionID != nil:
		edition, ok := lk.editions[*spec.EditionID]
		if !ok || !edition.Approved || edition.GameID != game.ID {
			return ResolvedItem{}, invalidReference("edition not found for this game")
		}
		id := edition.ID
		item.EditionID = &id
		item.Label = edition.Name
		item.UnitPriceCents = edition.CurrentPriceCents()
	case spec.DLCID != nil:
		dlc, ok := lk.dlcs[*spec.DLCID]
		if !ok || !dlc.Approved || dlc.GameID != game.ID {
			return ResolvedItem{}, invalidReference("dlc not found for this game")
		}
		id := dlc.ID
		item.DLCID = &id
		item.Label = "DLC: " + dlc.Title
		item.UnitPriceCents = dlc.CurrentPriceCents()
	default:
		item.Label = standardEditionLabel
		item.UnitPriceCents = game.CurrentPriceCents()
	}
	return item, nil
}

// describe fills whatever display fields are still known for an unavailable spec.
func (lk *lookup) describe(spec ItemSpec) ResolvedItem {
	item := ResolvedItem{GameID: spec.GameID, EditionID: spec.EditionID, DLCID: spec.DLCID}
	if game, ok := lk.games[spec.GameID]; ok {
		item.Title = game.Title
		item.Currency = game.Currency
	}
	if spec.EditionID != nil {
		if e, ok := lk.editions[*spec.EditionID]; ok {
			item.Label = e.Name
		}
	} else if spec.DLCID != nil {
		if d, ok := lk.dlcs[*spec.DLCID]; ok {
			item.Label = "DLC: " + d.Title
		}
	}
	return item
}
