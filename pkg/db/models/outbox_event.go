package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/pkg/enums"
)

// OutboxEvent is an append-only domain event awaiting publication.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// OutboxDLQ keeps events that exhausted their publish attempts.
type OutboxDLQ struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID      uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType    enums.OutboxEventType      `gorm:"column:event_type;type:event_type_enum;not null"`
	Payload      json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason  enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage *string                    `gorm:"column:error_message"`
	AttemptCount int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time                  `gorm:"column:failed_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
