package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/money"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/idempotency"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

// ConsumerName scopes this worker's idempotency markers.
const ConsumerName = "notifications-worker"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type eventGuard interface {
	Begin(ctx context.Context, eventID uuid.UUID) (idempotency.Claim, error)
	Finish(ctx context.Context, eventID uuid.UUID) error
	Abandon(ctx context.Context, eventID uuid.UUID) error
}

// Consumer turns settled orders and refund decisions into user notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	guard        eventGuard
	logg         *logger.Logger
}

// NewConsumer builds the notifications consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderVerified && eventType != enums.EventRefundReviewed {
		c.logg.Debug(logCtx, "skipping event without notification")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data, nil)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	claim, err := c.guard.Begin(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	switch claim {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.InFlight:
		c.logg.Info(logCtx, "event claimed by another delivery")
		return processResult{nack: true}
	}

	notification, err := buildNotification(envelope)
	if err == nil && notification != nil {
		err = c.repo.Create(ctx, notification)
	}
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if relErr := c.guard.Abandon(ctx, eventID); relErr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", relErr.Error()), "idempotency lease not released")
		}
		return processResult{nack: true}
	}
	if err := c.guard.Finish(ctx, eventID); err != nil {
		// The row exists; a redelivery after the lease lapses would notify twice.
		c.logg.Error(logCtx, "idempotency marker not persisted", err)
	}
	if notification != nil {
		c.logg.Info(c.logg.WithUserID(logCtx, notification.UserID.String()), "user notified")
	}
	return processResult{ack: true}
}

// buildNotification maps an envelope to the row shown in the user's inbox.
// It returns nil for events that need no notification.
func buildNotification(envelope outbox.PayloadEnvelope) (*models.Notification, error) {
	switch envelope.EventType {
	case enums.EventOrderVerified:
		var payload payloads.OrderVerifiedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse order verified payload: %w", err)
		}
		if payload.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		labels := make([]string, 0, len(payload.Purchases))
		for _, line := range payload.Purchases {
			labels = append(labels, line.Label)
		}
		message := fmt.Sprintf("Payment of %s received.", money.Format(payload.AmountCents, payload.Currency))
		if len(labels) > 0 {
			message = fmt.Sprintf("Payment of %s received. Added to your library: %s.",
				money.Format(payload.AmountCents, payload.Currency), strings.Join(labels, ", "))
		}
		return inboxNotification(payload.UserID, enums.NotificationTypePurchaseCompleted, message), nil

	case enums.EventRefundReviewed:
		var payload payloads.RefundReviewedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse refund reviewed payload: %w", err)
		}
		if payload.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		switch payload.Status {
		case enums.RefundStatusApproved:
			return inboxNotification(payload.UserID, enums.NotificationTypeRefundApproved,
				fmt.Sprintf("Your refund of %s was approved.", money.Format(payload.PricePaidCents, payload.Currency))), nil
		case enums.RefundStatusRejected:
			message := "Your refund request was rejected."
			if note := strings.TrimSpace(payload.ReviewNote); note != "" {
				message = fmt.Sprintf("Your refund request was rejected. Reason: %s", note)
			}
			return inboxNotification(payload.UserID, enums.NotificationTypeRefundRejected, message), nil
		}
	}
	return nil, nil
}

func inboxNotification(userID uuid.UUID, kind enums.NotificationType, message string) *models.Notification {
	link := kind.Link()
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   kind.Title(),
		Message: message,
		Link:    &link,
	}
}
