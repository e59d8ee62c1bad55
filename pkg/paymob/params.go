package paymob

import "encoding/json"

// BillingData is the customer detail block the payment key endpoint requires.
// Paymob rejects empty fields, so unknown values are sent as "NA".
type BillingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	PostalCode  string `json:"postal_code"`
}

func (b BillingData) withDefaults() BillingData {
	fill := func(s string) string {
		if s == "" {
			return "NA"
		}
		return s
	}
	b.FirstName = fill(b.FirstName)
	b.LastName = fill(b.LastName)
	b.Email = fill(b.Email)
	b.PhoneNumber = fill(b.PhoneNumber)
	b.Street = fill(b.Street)
	b.Building = fill(b.Building)
	b.Floor = fill(b.Floor)
	b.Apartment = fill(b.Apartment)
	b.City = fill(b.City)
	b.State = fill(b.State)
	b.Country = fill(b.Country)
	b.PostalCode = fill(b.PostalCode)
	return b
}

// OrderItem describes a line forwarded to the gateway order registration.
type OrderItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
}

// RegisterOrderParams carries the inputs for the gateway-side order.
// MerchantOrderID is our order id round-tripped so callbacks can be matched
// back without a lookup table.
type RegisterOrderParams struct {
	MerchantOrderID string
	AmountCents     int64
	Currency        string
	Items           []OrderItem
}

// PaymentKeyParams carries the inputs for the payment token call.
type PaymentKeyParams struct {
	GatewayOrderID int64
	AmountCents    int64
	Currency       string
	Billing        BillingData
}

// RefundParams carries the inputs for the refund submission call.
type RefundParams struct {
	TransactionRef string
	AmountCents    int64
}

// RefundResult is the provider acknowledgment of a refund submission. The
// refund settles later via the callback channel; Pending reflects that.
type RefundResult struct {
	RefundRef string
	Pending   bool
	Success   bool
}

// PaymentSession is the outcome of the full handshake: everything the
// client-side payment widget needs to charge the customer.
type PaymentSession struct {
	GatewayOrderID int64
	PaymentToken   string
}

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

type registerOrderRequest struct {
	AuthToken       string      `json:"auth_token"`
	DeliveryNeeded  bool        `json:"delivery_needed"`
	AmountCents     int64       `json:"amount_cents"`
	Currency        string      `json:"currency"`
	MerchantOrderID string      `json:"merchant_order_id"`
	Items           []OrderItem `json:"items"`
}

type registerOrderResponse struct {
	ID int64 `json:"id"`
}

type paymentKeyRequest struct {
	AuthToken     string      `json:"auth_token"`
	AmountCents   int64       `json:"amount_cents"`
	Expiration    int         `json:"expiration"`
	OrderID       int64       `json:"order_id"`
	BillingData   BillingData `json:"billing_data"`
	Currency      string      `json:"currency"`
	IntegrationID string      `json:"integration_id"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

type refundRequest struct {
	AuthToken     string `json:"auth_token"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

type refundResponse struct {
	ID      json.Number `json:"id"`
	Pending bool        `json:"pending"`
	Success bool        `json:"success"`
}
