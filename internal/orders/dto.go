package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

// OrderSummary exposes the fields returned in order listings.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   int64               `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalCents    int64               `json:"total_cents"`
	RefundedCents int64               `json:"refunded_cents"`
	Currency      enums.Currency      `json:"currency"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func summarize(order models.Order) OrderSummary {
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalCents:    order.TotalCents,
		RefundedCents: order.RefundedCents,
		Currency:      order.Currency,
		CreatedAt:     order.CreatedAt,
	}
}

// OrderConfirmedEvent is emitted when a verified payment confirms an order.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"total_cents"`
	Currency    string    `json:"currency"`
	TxnRef      string    `json:"txn_ref"`
}

// PaymentFailedEvent is emitted when a gateway callback reports a failed charge.
type PaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Email   string    `json:"email"`
	TxnRef  string    `json:"txn_ref"`
}

// FulfillmentEvent is emitted on ship/deliver/cancel transitions.
type FulfillmentEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    int64             `json:"order_number"`
	Email          string            `json:"email"`
	Status         enums.OrderStatus `json:"status"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
}

// ShipmentInfo carries the carrier details recorded when an order ships.
type ShipmentInfo struct {
	Carrier        string
	TrackingNumber string
}
