package enums

import "testing"

func TestRefundStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    RefundStatus
		to      RefundStatus
		allowed bool
	}{
		{RefundStatusRequested, RefundStatusProcessing, true},
		{RefundStatusRequested, RefundStatusFailed, true},
		{RefundStatusRequested, RefundStatusSucceeded, false},
		{RefundStatusProcessing, RefundStatusSucceeded, true},
		{RefundStatusProcessing, RefundStatusFailed, true},
		{RefundStatusProcessing, RefundStatusRequested, false},
		{RefundStatusSucceeded, RefundStatusFailed, false},
		{RefundStatusSucceeded, RefundStatusRequested, false},
		{RefundStatusFailed, RefundStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}
