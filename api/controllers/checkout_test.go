package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/karimfahmy/nilecart-backend/internal/checkout"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

type testCheckoutService struct {
	checkoutFn func(ctx context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.Result, error)
}

func (s *testCheckoutService) Checkout(ctx context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.Result, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, input)
	}
	return nil, nil
}

const checkoutBody = `{
	"email": "mona@example.com",
	"items": [
		{"sku": "SKU-1", "name": "Ceramic Mug", "unit_price_cents": 15000, "qty": 3}
	],
	"address": {
		"recipient_name": "Mona Hassan",
		"phone": "+201000000000",
		"line1": "12 Tahrir St",
		"city": "Cairo",
		"governorate": "Cairo",
		"country": "EG"
	},
	"rate_id": "standard"
}`

func TestCheckoutCreated(t *testing.T) {
	svc := &testCheckoutService{
		checkoutFn: func(ctx context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.Result, error) {
			if input.Email != "mona@example.com" {
				t.Fatalf("unexpected email %q", input.Email)
			}
			if len(input.Lines) != 1 || input.Lines[0].UnitCents != 15000 || input.Lines[0].Qty != 3 {
				t.Fatalf("unexpected lines %+v", input.Lines)
			}
			if input.UserID != nil {
				t.Fatalf("expected guest checkout, got user %s", input.UserID)
			}
			order := sampleOrder(nil)
			return &checkoutsvc.Result{
				Order:          order,
				AccessToken:    "one-time-token",
				GatewayOrderID: 98765,
				PaymentToken:   "pay-token",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Checkout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.AccessToken != "one-time-token" {
		t.Fatalf("unexpected access token %q", envelope.Data.AccessToken)
	}
	if envelope.Data.PaymentToken != "pay-token" {
		t.Fatalf("unexpected payment token %q", envelope.Data.PaymentToken)
	}
	if envelope.Data.GatewayOrderID != 98765 {
		t.Fatalf("unexpected gateway order %d", envelope.Data.GatewayOrderID)
	}
}

func TestCheckoutAttachesPrincipal(t *testing.T) {
	userID := uuid.New()
	svc := &testCheckoutService{
		checkoutFn: func(ctx context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.Result, error) {
			if input.UserID == nil || *input.UserID != userID {
				t.Fatalf("expected user %s, got %+v", userID, input.UserID)
			}
			return &checkoutsvc.Result{Order: sampleOrder(&userID)}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Content-Type", "application/json")
	req = withPrincipal(req, userID, enums.MemberRoleCustomer)

	resp := httptest.NewRecorder()
	Checkout(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	body := `{
		"email": "mona@example.com",
		"items": [],
		"address": {
			"recipient_name": "Mona Hassan",
			"phone": "+201000000000",
			"line1": "12 Tahrir St",
			"city": "Cairo",
			"governorate": "Cairo"
		}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Checkout(&testCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCheckoutRejectsBadEmail(t *testing.T) {
	body := strings.Replace(checkoutBody, "mona@example.com", "not-an-email", 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	Checkout(&testCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
