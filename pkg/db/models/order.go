package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

// Order is the aggregate root of the purchase lifecycle. Monetary fields are
// EGP piasters and are frozen at creation, except RefundedCents which only
// grows as refunds settle.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       int64                 `gorm:"column:order_number;not null;unique;default:nextval('order_number_seq')"`
	UserID            *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	Email             string                `gorm:"column:email;not null"`
	Status            enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'draft'"`
	PaymentStatus     enums.PaymentStatus   `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Currency          enums.Currency        `gorm:"column:currency;type:currency;not null;default:'EGP'"`
	SubtotalCents     int64                 `gorm:"column:subtotal_cents;not null"`
	ShippingCents     int64                 `gorm:"column:shipping_cents;not null"`
	DiscountCents     int64                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int64                 `gorm:"column:total_cents;not null"`
	RefundedCents     int64                 `gorm:"column:refunded_cents;not null;default:0"`
	ShippingAddress   types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	ShippingZone      string                `gorm:"column:shipping_zone;not null"`
	AccessTokenDigest string                `gorm:"column:access_token_digest;not null"`
	ProviderOrderRef  *string               `gorm:"column:provider_order_ref;unique"`
	Carrier           *string               `gorm:"column:carrier"`
	TrackingNumber    *string               `gorm:"column:tracking_number"`
	ConfirmedAt       *time.Time            `gorm:"column:confirmed_at"`
	ShippedAt         *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time            `gorm:"column:delivered_at"`
	CancelledAt       *time.Time            `gorm:"column:cancelled_at"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
