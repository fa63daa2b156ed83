package router

import (
	"context"
	"fmt"

	"github.com/laggedout/storefront-backend/internal/analytics/types"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

type orderVerifiedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderVerifiedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderVerifiedHandler{writer: writer, logg: logg}
}

func (h *orderVerifiedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderVerifiedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_verified")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"order_id":     event.OrderID,
		"amount_cents": event.AmountCents,
		"lines":        len(event.Purchases),
	})

	if len(event.Purchases) == 0 {
		h.logg.Warn(logCtx, "order_verified without purchases")
		return nil
	}

	occurredAt := envelope.OccurredAt
	if !event.VerifiedAt.IsZero() {
		occurredAt = event.VerifiedAt.UTC()
	}

	rows := make([]types.PurchaseFactRow, 0, len(event.Purchases))
	for _, line := range event.Purchases {
		rows = append(rows, types.PurchaseFactRow{
			EventID:        envelope.EventID,
			OccurredAt:     occurredAt,
			OrderID:        event.OrderID.String(),
			GatewayOrderID: event.GatewayOrderID,
			PurchaseID:     line.PurchaseID.String(),
			UserID:         event.UserID.String(),
			GameID:         line.GameID.String(),
			EditionID:      uuidString(line.EditionID),
			DLCID:          uuidString(line.DLCID),
			Label:          line.Label,
			Source:         string(event.Source),
			PricePaidCents: line.PricePaidCents,
			PricePaid:      money.Major(line.PricePaidCents).Rat(),
			Currency:       event.Currency,
		})
	}

	if err := h.writer.InsertPurchaseFacts(logCtx, rows); err != nil {
		h.logg.Error(logCtx, "failed to insert purchase facts", err)
		return err
	}

	h.logg.Info(logCtx, "order_verified handler inserted purchase facts")
	return nil
}
