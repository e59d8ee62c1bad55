package enums

import "fmt"

// RefundStatus tracks a refund request from creation to settlement.
// Transitions only move forward: requested -> processing -> succeeded|failed.
type RefundStatus string

const (
	RefundStatusRequested  RefundStatus = "requested"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusSucceeded  RefundStatus = "succeeded"
	RefundStatusFailed     RefundStatus = "failed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusRequested,
	RefundStatusProcessing,
	RefundStatusSucceeded,
	RefundStatusFailed,
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

// IsTerminal reports whether the refund has settled.
func (r RefundStatus) IsTerminal() bool {
	return r == RefundStatusSucceeded || r == RefundStatusFailed
}

// CanTransitionTo enforces the forward-only refund state machine.
func (r RefundStatus) CanTransitionTo(next RefundStatus) bool {
	switch r {
	case RefundStatusRequested:
		return next == RefundStatusProcessing || next == RefundStatusFailed
	case RefundStatusProcessing:
		return next == RefundStatusSucceeded || next == RefundStatusFailed
	default:
		return false
	}
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
