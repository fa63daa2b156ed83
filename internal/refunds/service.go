package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/events"
	"github.com/laggedout/storefront-backend/internal/library"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/metrics"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

var (
	errDuplicate = errors.New("refund already open")
	errDecided   = errors.New("refund already reviewed")
)

type Service interface {
	RequestRefund(ctx context.Context, userID uuid.UUID, input RequestInput) (*View, error)
	ReviewRefund(ctx context.Context, reviewer Reviewer, refundID uuid.UUID, input ReviewInput) (*View, error)
	ListRefunds(ctx context.Context, status *enums.RefundStatus, params pagination.Params) (*pagination.Page[View], error)
	ListMyRefunds(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[View], error)
}

type Deps struct {
	Repo      *Repository
	Purchases *purchases.Repository
	Revoker   library.Revoker
	Tx        db.TxRunner
	Outbox    outbox.Emitter
	Bus       events.Publisher
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Clock     func() time.Time
}

type service struct {
	repo      *Repository
	purchases *purchases.Repository
	revoker   library.Revoker
	tx        db.TxRunner
	outbox    outbox.Emitter
	bus       events.Publisher
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil || deps.Purchases == nil {
		return nil, fmt.Errorf("refund and purchase repositories required")
	}
	if deps.Revoker == nil {
		return nil, fmt.Errorf("library revoker required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      deps.Repo,
		purchases: deps.Purchases,
		revoker:   deps.Revoker,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		bus:       bus,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       clock,
	}, nil
}

func (s *service) RequestRefund(ctx context.Context, userID uuid.UUID, input RequestInput) (*View, error) {
	reason := strings.TrimSpace(input.Reason)
	if n := utf8.RuneCountInString(reason); n < minReasonLen || n > maxReasonLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund reason").WithDetails(map[string]string{
			"reason": fmt.Sprintf("must be between %d and %d characters", minReasonLen, maxReasonLen),
		})
	}

	purchase, err := s.purchases.FindForUser(ctx, userID, input.PurchaseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}

	refund := models.Refund{
		ID:         uuid.New(),
		PurchaseID: purchase.ID,
		UserID:     userID,
		Reason:     reason,
		Status:     enums.RefundStatusPending,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	rec := events.NewRecorder(s.outbox)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		repo := s.repo.WithTx(tx)
		open, err := repo.HasOpen(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if open {
			return errDuplicate
		}
		if err := repo.Create(ctx, &refund); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicate
			}
			return err
		}
		return rec.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.RefundRequestedEvent{
				RefundID:   refund.ID,
				PurchaseID: purchase.ID,
				UserID:     userID,
				Reason:     reason,
			},
		})
	})
	switch {
	case errors.Is(err, errDuplicate):
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateRefund, "a refund for this purchase is already open")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "request refund")
	}
	rec.Flush(ctx, s.bus)
	s.metrics.Refund(string(enums.RefundStatusPending))

	view := viewOf(refund)
	return &view, nil
}

// ReviewRefund decides a pending refund. Approval revokes the purchase in the
// same transaction as the status change.
func (s *service) ReviewRefund(ctx context.Context, reviewer Reviewer, refundID uuid.UUID, input ReviewInput) (*View, error) {
	if reviewer.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
	}
	note := input.Note
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		note = &trimmed
		if trimmed == "" {
			note = nil
		}
	}

	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
	}
	if refund.Status != enums.RefundStatusPending {
		return nil, alreadyDecided(refund.Status)
	}

	status := input.Decision.Status()
	now := s.now()
	rec := events.NewRecorder(s.outbox)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rec.Reset()
		moved, err := s.repo.WithTx(tx).MarkReviewed(ctx, refund.ID, status, reviewer.UserID, note, now)
		if err != nil {
			return err
		}
		if !moved {
			return errDecided
		}

		purchase, err := s.purchases.WithTx(tx).FindByID(ctx, refund.PurchaseID)
		if err != nil {
			return err
		}
		if status == enums.RefundStatusApproved {
			if err := s.revoker.Revoke(ctx, tx, *purchase, now); err != nil {
				return err
			}
		}

		data := payloads.RefundReviewedEvent{
			RefundID:       refund.ID,
			PurchaseID:     purchase.ID,
			UserID:         refund.UserID,
			GameID:         purchase.GameID,
			Status:         status,
			ReviewedBy:     reviewer.UserID,
			PricePaidCents: purchase.PricePaidCents,
			Currency:       purchase.Currency,
			ReviewedAt:     now,
		}
		if note != nil {
			data.ReviewNote = *note
		}
		return rec.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundReviewed,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         &outbox.ActorRef{UserID: reviewer.UserID, Role: string(reviewer.Role)},
			Data:          data,
		})
	})
	switch {
	case errors.Is(err, errDecided):
		current, lookupErr := s.repo.FindByID(ctx, refund.ID)
		if lookupErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "load refund")
		}
		return nil, alreadyDecided(current.Status)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "review refund")
	}
	rec.Flush(ctx, s.bus)
	s.metrics.Refund(string(status))

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"refund_id":   refund.ID.String(),
			"purchase_id": refund.PurchaseID.String(),
			"reviewer_id": reviewer.UserID.String(),
			"decision":    string(status),
		})
		s.logg.Info(logCtx, "refund reviewed")
	}

	refund.Status = status
	refund.ReviewedBy = &reviewer.UserID
	refund.ReviewedAt = &now
	refund.ReviewNote = note
	view := viewOf(*refund)
	return &view, nil
}

func (s *service) ListRefunds(ctx context.Context, status *enums.RefundStatus, params pagination.Params) (*pagination.Page[View], error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund status %q", *status))
	}
	return s.list(params, func() ([]models.Refund, error) {
		return s.repo.List(ctx, status, params)
	})
}

func (s *service) ListMyRefunds(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[View], error) {
	return s.list(params, func() ([]models.Refund, error) {
		return s.repo.ListByUser(ctx, userID, params)
	})
}

func (s *service) list(params pagination.Params, load func() ([]models.Refund, error)) (*pagination.Page[View], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := load()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list refunds")
	}
	page := pagination.Build(rows, params.Limit, func(r models.Refund) pagination.Cursor {
		return pagination.Cursor{At: r.CreatedAt, ID: r.ID}
	})
	out := &pagination.Page[View]{Items: make([]View, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, r := range page.Items {
		out.Items = append(out.Items, viewOf(r))
	}
	return out, nil
}

func alreadyDecided(status enums.RefundStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("refund is already %s", status))
}
