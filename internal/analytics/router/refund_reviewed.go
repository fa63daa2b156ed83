package router

import (
	"context"
	"fmt"

	"github.com/laggedout/storefront-backend/internal/analytics/types"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

type refundReviewedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newRefundReviewedHandler(writer Writer, logg *logger.Logger) Handler {
	return &refundReviewedHandler{writer: writer, logg: logg}
}

func (h *refundReviewedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.RefundReviewedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for refund_reviewed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"refund_id":  event.RefundID,
		"status":     event.Status,
	})

	occurredAt := envelope.OccurredAt
	if !event.ReviewedAt.IsZero() {
		occurredAt = event.ReviewedAt.UTC()
	}

	// Rejections are recorded with a zero amount so refund rates can be derived.
	var cents int64
	if event.Status == enums.RefundStatusApproved {
		cents = event.PricePaidCents
	}

	row := types.RefundFactRow{
		EventID:      envelope.EventID,
		OccurredAt:   occurredAt,
		RefundID:     event.RefundID.String(),
		PurchaseID:   event.PurchaseID.String(),
		UserID:       event.UserID.String(),
		GameID:       event.GameID.String(),
		Status:       string(event.Status),
		ReviewedBy:   event.ReviewedBy.String(),
		RefundCents:  cents,
		RefundAmount: money.Major(cents).Rat(),
		Currency:     event.Currency,
	}

	if err := h.writer.InsertRefundFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert refund fact", err)
		return err
	}

	h.logg.Info(logCtx, "refund_reviewed handler inserted refund fact")
	return nil
}
