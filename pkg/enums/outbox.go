package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCart   OutboxAggregateType = "cart"
	AggregateOrder  OutboxAggregateType = "order"
	AggregateRefund OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCart,
	AggregateOrder,
	AggregateRefund,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCartChanged     OutboxEventType = "cart_changed"
	EventOrderCreated    OutboxEventType = "order_created"
	EventOrderVerified   OutboxEventType = "order_verified"
	EventOrderFailed     OutboxEventType = "order_failed"
	EventRefundRequested OutboxEventType = "refund_requested"
	EventRefundReviewed  OutboxEventType = "refund_reviewed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCartChanged,
	EventOrderCreated,
	EventOrderVerified,
	EventOrderFailed,
	EventRefundRequested,
	EventRefundReviewed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
