package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

// Refund tracks a single refund attempt against a captured payment.
type Refund struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentID         uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	AmountCents       int64              `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency     `gorm:"column:currency;type:currency;not null;default:'EGP'"`
	Status            enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'requested'"`
	Reason            string             `gorm:"column:reason;not null"`
	RequestedBy       *uuid.UUID         `gorm:"column:requested_by;type:uuid"`
	ProviderRefundRef *string            `gorm:"column:provider_refund_ref;unique"`
	RawPayload        json.RawMessage    `gorm:"column:raw_payload;type:jsonb"`
	FailureReason     *string            `gorm:"column:failure_reason"`
	SettledAt         *time.Time         `gorm:"column:settled_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
