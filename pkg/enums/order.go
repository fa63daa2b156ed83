package enums

import "fmt"

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusVerified OrderStatus = "verified"
	OrderStatusFailed   OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusVerified,
	OrderStatusFailed,
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusVerified || s == OrderStatusFailed
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OrderSource records what an order was built from.
type OrderSource string

const (
	OrderSourceCart       OrderSource = "cart"
	OrderSourceSingleItem OrderSource = "single_item"
)

func (s OrderSource) IsValid() bool {
	return s == OrderSourceCart || s == OrderSourceSingleItem
}

func ParseOrderSource(value string) (OrderSource, error) {
	src := OrderSource(value)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid order source %q", value)
	}
	return src, nil
}

// OrderFailureReason explains a pending -> failed transition.
type OrderFailureReason string

const (
	OrderFailureExpired         OrderFailureReason = "expired"
	OrderFailureGatewayDeclined OrderFailureReason = "gateway_declined"
)
