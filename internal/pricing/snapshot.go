package pricing

import (
	"github.com/google/uuid"

	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
)

// LineInput is one cart line as selected by the customer.
type LineInput struct {
	ProductID *uuid.UUID
	SKU       string
	Name      string
	UnitCents int64
	Qty       int
}

// Line is the frozen form of a cart line inside a snapshot.
type Line struct {
	ProductID  *uuid.UUID
	SKU        string
	Name       string
	UnitCents  int64
	Qty        int
	TotalCents int64
}

// Snapshot is the immutable pricing of an order. All arithmetic is integer
// minor-unit addition; building it has no side effects and is safe to repeat.
type Snapshot struct {
	Lines         []Line
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Build freezes cart lines plus a shipping price into an order total.
func Build(lines []LineInput, shippingCents, discountCents int64) (*Snapshot, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if shippingCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping price cannot be negative")
	}
	if discountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}

	snapshot := &Snapshot{
		Lines:         make([]Line, 0, len(lines)),
		ShippingCents: shippingCents,
		DiscountCents: discountCents,
	}

	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive").
				WithDetails(map[string]any{"sku": line.SKU})
		}
		if line.UnitCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line price cannot be negative").
				WithDetails(map[string]any{"sku": line.SKU})
		}

		total := line.UnitCents * int64(line.Qty)
		snapshot.Lines = append(snapshot.Lines, Line{
			ProductID:  line.ProductID,
			SKU:        line.SKU,
			Name:       line.Name,
			UnitCents:  line.UnitCents,
			Qty:        line.Qty,
			TotalCents: total,
		})
		snapshot.SubtotalCents += total
	}

	if discountCents > snapshot.SubtotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
	}

	snapshot.TotalCents = snapshot.SubtotalCents + shippingCents - discountCents
	return snapshot, nil
}
