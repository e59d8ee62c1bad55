package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

// ListFilters narrows the admin refund listing.
type ListFilters struct {
	Status  *enums.RefundStatus
	OrderID *uuid.UUID
}

// RefundSummary exposes the fields returned in refund listings.
type RefundSummary struct {
	ID                uuid.UUID          `json:"id"`
	OrderID           uuid.UUID          `json:"order_id"`
	PaymentID         uuid.UUID          `json:"payment_id"`
	AmountCents       int64              `json:"amount_cents"`
	Currency          enums.Currency     `json:"currency"`
	Status            enums.RefundStatus `json:"status"`
	Reason            string             `json:"reason"`
	ProviderRefundRef *string            `json:"provider_refund_ref,omitempty"`
	FailureReason     *string            `json:"failure_reason,omitempty"`
	SettledAt         *time.Time         `json:"settled_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// RefundList wraps the paginated refunds plus the next page cursor.
type RefundList struct {
	Refunds    []RefundSummary `json:"refunds"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func summarize(refund models.Refund) RefundSummary {
	return RefundSummary{
		ID:                refund.ID,
		OrderID:           refund.OrderID,
		PaymentID:         refund.PaymentID,
		AmountCents:       refund.AmountCents,
		Currency:          refund.Currency,
		Status:            refund.Status,
		Reason:            refund.Reason,
		ProviderRefundRef: refund.ProviderRefundRef,
		FailureReason:     refund.FailureReason,
		SettledAt:         refund.SettledAt,
		CreatedAt:         refund.CreatedAt,
	}
}

// RefundSucceededEvent is emitted when the gateway confirms a refund settled.
type RefundSucceededEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Email       string    `json:"email"`
	FullRefund  bool      `json:"full_refund"`
}

// RefundFailedEvent is emitted when the gateway reports a refund failed.
type RefundFailedEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Email       string    `json:"email"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderRefundedEvent is emitted once when an order becomes fully refunded.
type OrderRefundedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   int64     `json:"order_number"`
	Email         string    `json:"email"`
	RefundedCents int64     `json:"refunded_cents"`
	Currency      string    `json:"currency"`
}
