package pricing

import (
	"testing"

	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
)

func TestBuild(t *testing.T) {
	snapshot, err := Build([]LineInput{
		{SKU: "TEE-1", Name: "Nile Tee", UnitCents: 15000, Qty: 2},
		{SKU: "MUG-1", Name: "Mug", UnitCents: 5000, Qty: 3},
	}, 5000, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if snapshot.SubtotalCents != 45000 {
		t.Fatalf("expected subtotal 45000, got %d", snapshot.SubtotalCents)
	}
	if snapshot.TotalCents != 50000 {
		t.Fatalf("expected total 50000, got %d", snapshot.TotalCents)
	}
	if snapshot.Lines[0].TotalCents != 30000 {
		t.Fatalf("expected line total 30000, got %d", snapshot.Lines[0].TotalCents)
	}
}

func TestBuildWithDiscount(t *testing.T) {
	snapshot, err := Build([]LineInput{
		{SKU: "TEE-1", UnitCents: 20000, Qty: 1},
	}, 5000, 2500)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snapshot.TotalCents != 22500 {
		t.Fatalf("expected total 22500, got %d", snapshot.TotalCents)
	}
}

func TestBuildIsRepeatable(t *testing.T) {
	lines := []LineInput{{SKU: "TEE-1", UnitCents: 19999, Qty: 3}}
	first, err := Build(lines, 7000, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := Build(lines, 7000, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if first.TotalCents != second.TotalCents || first.TotalCents != 66997 {
		t.Fatalf("pure build must repeat: %d vs %d", first.TotalCents, second.TotalCents)
	}
}

func TestBuildValidation(t *testing.T) {
	cases := []struct {
		name     string
		lines    []LineInput
		shipping int64
		discount int64
	}{
		{"empty cart", nil, 0, 0},
		{"zero qty", []LineInput{{SKU: "A", UnitCents: 100, Qty: 0}}, 0, 0},
		{"negative qty", []LineInput{{SKU: "A", UnitCents: 100, Qty: -1}}, 0, 0},
		{"negative price", []LineInput{{SKU: "A", UnitCents: -1, Qty: 1}}, 0, 0},
		{"negative shipping", []LineInput{{SKU: "A", UnitCents: 100, Qty: 1}}, -1, 0},
		{"discount over subtotal", []LineInput{{SKU: "A", UnitCents: 100, Qty: 1}}, 0, 200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.lines, tc.shipping, tc.discount)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %v", err)
			}
		})
	}
}
