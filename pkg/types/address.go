package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingAddress is the jsonb address snapshot frozen onto an order at
// creation time. Later edits to a customer's saved addresses never touch it.
type ShippingAddress struct {
	RecipientName string  `json:"recipient_name"`
	Phone         string  `json:"phone"`
	Line1         string  `json:"line1"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city"`
	Governorate   string  `json:"governorate"`
	PostalCode    *string `json:"postal_code,omitempty"`
	Country       string  `json:"country"`
}

// Value marshals the address into jsonb.
func (a ShippingAddress) Value() (driver.Value, error) {
	if strings.TrimSpace(a.RecipientName) == "" {
		return nil, fmt.Errorf("shipping address: missing recipient_name")
	}
	if strings.TrimSpace(a.Line1) == "" {
		return nil, fmt.Errorf("shipping address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("shipping address: missing city")
	}
	if strings.TrimSpace(a.Governorate) == "" {
		return nil, fmt.Errorf("shipping address: missing governorate")
	}

	if strings.TrimSpace(a.Country) == "" {
		a.Country = "EG"
	}

	return json.Marshal(a)
}

// Scan decodes the jsonb column.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}

	raw, ok := toBytes(value)
	if !ok {
		return fmt.Errorf("shipping address: unsupported scan type %T", value)
	}

	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("shipping address: decode %w", err)
	}

	if strings.TrimSpace(a.Country) == "" {
		a.Country = "EG"
	}

	return nil
}

func toBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}
