package enums

import "fmt"

// RefundStatus tracks a refund request through admin review.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusPending,
	RefundStatusApproved,
	RefundStatusRejected,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}

// RefundDecision is the admin verdict on a pending refund.
type RefundDecision string

const (
	RefundDecisionApprove RefundDecision = "approved"
	RefundDecisionReject  RefundDecision = "rejected"
)

func (d RefundDecision) IsValid() bool {
	return d == RefundDecisionApprove || d == RefundDecisionReject
}

// Status returns the refund status the decision moves a pending refund to.
func (d RefundDecision) Status() RefundStatus {
	if d == RefundDecisionApprove {
		return RefundStatusApproved
	}
	return RefundStatusRejected
}

func ParseRefundDecision(value string) (RefundDecision, error) {
	d := RefundDecision(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid refund decision %q", value)
	}
	return d, nil
}
