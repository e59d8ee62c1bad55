package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

// Payment records the gateway transaction that settled an order. The unique
// ProviderTxnRef constraint is what makes finalize idempotent under
// concurrent webhook and redirect delivery.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider       string              `gorm:"column:provider;not null;default:'paymob'"`
	ProviderTxnRef string              `gorm:"column:provider_txn_ref;not null;unique"`
	AmountCents    int64               `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency      `gorm:"column:currency;type:currency;not null;default:'EGP'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Source         string              `gorm:"column:source;not null"`
	RawPayload     json.RawMessage     `gorm:"column:raw_payload;type:jsonb"`
	CapturedAt     *time.Time          `gorm:"column:captured_at"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
