package purchases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

// Service reads the purchase ledger. Purchases are written only by payment
// settlement and revoked only by refund approval.
type Service interface {
	ListPurchases(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[View], error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListPurchases(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[View], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	page := pagination.Build(rows, params.Limit, func(p models.Purchase) pagination.Cursor {
		return pagination.Cursor{At: p.PurchasedAt, ID: p.ID}
	})

	ids := make([]uuid.UUID, 0, len(page.Items))
	gameIDs := make([]uuid.UUID, 0, len(page.Items))
	for _, p := range page.Items {
		ids = append(ids, p.ID)
		gameIDs = append(gameIDs, p.GameID)
	}
	statuses, err := s.repo.LatestRefundStatuses(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund statuses")
	}
	titles, err := s.repo.GameTitles(ctx, gameIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load game titles")
	}

	out := &pagination.Page[View]{Items: make([]View, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, p := range page.Items {
		view := ViewOf(p)
		view.Title = titles[p.GameID]
		if status, ok := statuses[p.ID]; ok {
			st := status
			view.RefundStatus = &st
		}
		out.Items = append(out.Items, view)
	}
	return out, nil
}
