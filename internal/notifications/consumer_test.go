package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
	"github.com/laggedout/storefront-backend/pkg/outbox/idempotency"
	"github.com/laggedout/storefront-backend/pkg/outbox/payloads"
)

type fakeGuard struct {
	done      map[uuid.UUID]bool
	inFlight  bool
	abandoned []uuid.UUID
	err       error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{done: map[uuid.UUID]bool{}}
}

func (f *fakeGuard) Begin(_ context.Context, eventID uuid.UUID) (idempotency.Claim, error) {
	switch {
	case f.err != nil:
		return idempotency.InFlight, f.err
	case f.done[eventID]:
		return idempotency.Done, nil
	case f.inFlight:
		return idempotency.InFlight, nil
	}
	return idempotency.Claimed, nil
}

func (f *fakeGuard) Finish(_ context.Context, eventID uuid.UUID) error {
	f.done[eventID] = true
	return nil
}

func (f *fakeGuard) Abandon(_ context.Context, eventID uuid.UUID) error {
	f.abandoned = append(f.abandoned, eventID)
	return nil
}

func newTestConsumer(repo *fakeRepository, guard *fakeGuard) *Consumer {
	return &Consumer{repo: repo, guard: guard, logg: logger.Nop()}
}

func message(t *testing.T, eventType enums.OutboxEventType, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{ID: "msg-1", Data: body, Attributes: map[string]string{"event_type": string(eventType)}}
}

func TestConsumerNotifiesOnVerifiedOrder(t *testing.T) {
	repo := &fakeRepository{}
	guard := newFakeGuard()
	c := newTestConsumer(repo, guard)
	userID := uuid.New()

	msg := message(t, enums.EventOrderVerified, payloads.OrderVerifiedEvent{
		UserID:      userID,
		AmountCents: 2500,
		Currency:    "USD",
		Purchases: []payloads.PurchaseLine{
			{Label: "Standard Edition"},
			{Label: "DLC: Frost Pack"},
		},
	})
	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	n := repo.created[0]
	if n.UserID != userID || n.Type != enums.NotificationTypePurchaseCompleted {
		t.Fatalf("unexpected notification %+v", n)
	}
	if !strings.Contains(n.Message, "25.00 USD") || !strings.Contains(n.Message, "DLC: Frost Pack") {
		t.Fatalf("unexpected message %q", n.Message)
	}

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("redelivery should ack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("redelivery must not notify twice")
	}
}

func TestConsumerRefundDecisions(t *testing.T) {
	repo := &fakeRepository{}
	c := newTestConsumer(repo, newFakeGuard())
	userID := uuid.New()

	c.process(context.Background(), message(t, enums.EventRefundReviewed, payloads.RefundReviewedEvent{
		UserID: userID, Status: enums.RefundStatusApproved, PricePaidCents: 1999, Currency: "USD",
	}))
	c.process(context.Background(), message(t, enums.EventRefundReviewed, payloads.RefundReviewedEvent{
		UserID: userID, Status: enums.RefundStatusRejected, ReviewNote: "played 40 hours",
	}))

	if len(repo.created) != 2 {
		t.Fatalf("expected two notifications, got %d", len(repo.created))
	}
	if repo.created[0].Type != enums.NotificationTypeRefundApproved {
		t.Fatalf("expected approval notification, got %s", repo.created[0].Type)
	}
	if repo.created[1].Type != enums.NotificationTypeRefundRejected || !strings.Contains(repo.created[1].Message, "played 40 hours") {
		t.Fatalf("unexpected rejection notification %+v", repo.created[1])
	}
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	repo := &fakeRepository{}
	c := newTestConsumer(repo, newFakeGuard())
	if res := c.process(context.Background(), message(t, enums.EventCartChanged, payloads.CartChangedEvent{})); !res.ack {
		t.Fatalf("expected ack")
	}
	if len(repo.created) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestConsumerNacksAndReleasesOnFailure(t *testing.T) {
	repo := &fakeRepository{createErr: errors.New("db down")}
	guard := newFakeGuard()
	c := newTestConsumer(repo, guard)

	res := c.process(context.Background(), message(t, enums.EventOrderVerified, payloads.OrderVerifiedEvent{UserID: uuid.New()}))
	if !res.nack {
		t.Fatalf("expected nack")
	}
	if len(guard.abandoned) != 1 || len(guard.done) != 0 {
		t.Fatalf("expected lease abandoned, got %+v", guard)
	}
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	c := newTestConsumer(&fakeRepository{}, &fakeGuard{err: errors.New("redis down")})
	if res := c.process(context.Background(), message(t, enums.EventOrderVerified, payloads.OrderVerifiedEvent{UserID: uuid.New()})); !res.nack {
		t.Fatalf("expected nack")
	}
}

func TestConsumerNacksWhileAnotherDeliveryHoldsTheEvent(t *testing.T) {
	repo := &fakeRepository{}
	guard := newFakeGuard()
	guard.inFlight = true
	c := newTestConsumer(repo, guard)

	if res := c.process(context.Background(), message(t, enums.EventOrderVerified, payloads.OrderVerifiedEvent{UserID: uuid.New()})); !res.nack {
		t.Fatalf("expected nack so the event is redelivered")
	}
	if len(repo.created) != 0 {
		t.Fatalf("in-flight event must not notify")
	}
}
