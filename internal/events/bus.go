// Package events fans committed domain events out to in-process read-model
// subscribers. Durable delivery goes through the outbox; this bus only keeps
// local caches fresh right after a transaction commits.
package events

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
)

// Handler reacts to a committed event. Errors are logged and never bubble up
// to the request that produced the event.
type Handler func(ctx context.Context, event outbox.DomainEvent) error

// Publisher is the dependency services take to announce committed events.
type Publisher interface {
	Publish(ctx context.Context, events ...outbox.DomainEvent)
}

type Bus struct {
	mu       sync.RWMutex
	handlers map[enums.OutboxEventType][]Handler
	logg     *logger.Logger
}

func NewBus(logg *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[enums.OutboxEventType][]Handler),
		logg:     logg,
	}
}

// Subscribe registers h for every listed event type.
func (b *Bus) Subscribe(h Handler, types ...enums.OutboxEventType) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], h)
	}
}

// Publish runs subscribers synchronously in registration order.
func (b *Bus) Publish(ctx context.Context, events ...outbox.DomainEvent) {
	for _, evt := range events {
		b.mu.RLock()
		handlers := append([]Handler(nil), b.handlers[evt.EventType]...)
		b.mu.RUnlock()

		for _, h := range handlers {
			if err := h(ctx, evt); err != nil && b.logg != nil {
				logCtx := b.logg.WithFields(ctx, map[string]any{
					"event_type":   evt.EventType,
					"aggregate_id": evt.AggregateID.String(),
				})
				b.logg.Warn(logCtx, "read model subscriber failed: "+err.Error())
			}
		}
	}
}

// Recorder queues events inside a transaction and hands them to the bus only
// after the caller reports a successful commit.
type Recorder struct {
	emitter outbox.Emitter
	pending []outbox.DomainEvent
}

func NewRecorder(emitter outbox.Emitter) *Recorder {
	return &Recorder{emitter: emitter}
}

// Emit writes the event to the outbox with tx and remembers it for Flush.
func (r *Recorder) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if r.emitter != nil {
		if err := r.emitter.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	r.pending = append(r.pending, event)
	return nil
}

// Flush publishes the recorded events. Call it only after commit.
func (r *Recorder) Flush(ctx context.Context, pub Publisher) {
	if pub != nil && len(r.pending) > 0 {
		pub.Publish(ctx, r.pending...)
	}
	r.pending = nil
}

// Reset drops recorded events, e.g. when the transaction is retried.
func (r *Recorder) Reset() {
	r.pending = nil
}

// Nop discards published events.
type Nop struct{}

func (Nop) Publish(context.Context, ...outbox.DomainEvent) {}
