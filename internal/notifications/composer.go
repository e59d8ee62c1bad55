package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

type orderEventPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"total_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	TxnRef      string    `json:"txn_ref"`
}

type refundEventPayload struct {
	RefundID      uuid.UUID `json:"refund_id"`
	OrderID       uuid.UUID `json:"order_id"`
	AmountCents   int64     `json:"amount_cents"`
	RefundedCents int64     `json:"refunded_cents"`
	Currency      string    `json:"currency"`
	Email         string    `json:"email"`
	FullRefund    bool      `json:"full_refund"`
	Reason        string    `json:"reason"`
	OrderNumber   int64     `json:"order_number"`
}

// formatAmount renders minor units as a customer-facing amount, e.g. 50000
// piasters as "EGP 500.00".
func formatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "EGP"
	}
	amount := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
}

// compose turns a domain event payload into a deliverable message. A nil
// return with no error means the event carries nothing customer-facing.
func compose(eventType enums.OutboxEventType, data json.RawMessage) (*Message, error) {
	switch eventType {
	case enums.EventOrderConfirmed:
		var p orderEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: fmt.Sprintf("Order #%d confirmed", p.OrderNumber),
			Body: fmt.Sprintf("Your payment of %s was received. Order #%d is confirmed and being prepared.",
				formatAmount(p.TotalCents, p.Currency), p.OrderNumber),
		}, nil
	case enums.EventPaymentFailed:
		var p orderEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: "Payment unsuccessful",
			Body:    "Your payment could not be completed. No money was taken; you can retry checkout at any time.",
		}, nil
	case enums.EventOrderShipped:
		var p orderEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: fmt.Sprintf("Order #%d shipped", p.OrderNumber),
			Body:    fmt.Sprintf("Order #%d is on its way.", p.OrderNumber),
		}, nil
	case enums.EventOrderDelivered:
		var p orderEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: fmt.Sprintf("Order #%d delivered", p.OrderNumber),
			Body:    fmt.Sprintf("Order #%d was delivered. We hope you enjoy it.", p.OrderNumber),
		}, nil
	case enums.EventOrderCancelled:
		var p orderEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: fmt.Sprintf("Order #%d cancelled", p.OrderNumber),
			Body:    fmt.Sprintf("Order #%d was cancelled.", p.OrderNumber),
		}, nil
	case enums.EventOrderRefunded:
		var p refundEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: fmt.Sprintf("Order #%d fully refunded", p.OrderNumber),
			Body: fmt.Sprintf("The full %s has been returned to your payment method.",
				formatAmount(p.RefundedCents, p.Currency)),
		}, nil
	case enums.EventRefundSucceeded:
		var p refundEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &Message{
			To:      p.Email,
			Subject: "Refund completed",
			Body: fmt.Sprintf("Your refund of %s has been processed.",
				formatAmount(p.AmountCents, p.Currency)),
		}, nil
	case enums.EventRefundFailed:
		var p refundEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		body := "Your refund request was not completed."
		if p.Reason != "" {
			body = fmt.Sprintf("Your refund request was not completed: %s.", p.Reason)
		}
		return &Message{
			To:      p.Email,
			Subject: "Refund update",
			Body:    body,
		}, nil
	default:
		return nil, nil
	}
}
