package paymob

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/karimfahmy/nilecart-backend/pkg/config"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	client, err := NewClient(config.PaymobConfig{
		BaseURL:       baseURL,
		APIKey:        "api-key",
		HMACSecret:    "hmac-secret",
		IntegrationID: 42,
		Timeout:       2 * time.Second,
	}, logg, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreatePaymentSession(t *testing.T) {
	var gotOrder registerOrderRequest
	var gotKey paymentKeyRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case authPath:
			json.NewEncoder(w).Encode(map[string]string{"token": "auth-token"})
		case orderPath:
			if err := json.NewDecoder(r.Body).Decode(&gotOrder); err != nil {
				t.Errorf("decode order request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]int64{"id": 9001})
		case paymentKeyPath:
			if err := json.NewDecoder(r.Body).Decode(&gotKey); err != nil {
				t.Errorf("decode key request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]string{"token": "payment-token"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	session, err := client.CreatePaymentSession(context.Background(), RegisterOrderParams{
		MerchantOrderID: "ord-uuid-1",
		AmountCents:     50000,
		Currency:        "EGP",
		Items:           []OrderItem{{Name: "Item", AmountCents: 25000, Quantity: 2}},
	}, BillingData{FirstName: "Karim", City: "Cairo"})
	if err != nil {
		t.Fatalf("create payment session: %v", err)
	}

	if session.GatewayOrderID != 9001 {
		t.Fatalf("unexpected gateway order id %d", session.GatewayOrderID)
	}
	if session.PaymentToken != "payment-token" {
		t.Fatalf("unexpected payment token %s", session.PaymentToken)
	}

	if gotOrder.AuthToken != "auth-token" {
		t.Fatalf("order call missing auth token")
	}
	if gotOrder.MerchantOrderID != "ord-uuid-1" {
		t.Fatalf("merchant order id not round-tripped")
	}
	if gotKey.OrderID != 9001 {
		t.Fatalf("payment key call should reference gateway order id")
	}
	if gotKey.IntegrationID != "42" {
		t.Fatalf("unexpected integration id %s", gotKey.IntegrationID)
	}
	if gotKey.BillingData.LastName != "NA" {
		t.Fatalf("empty billing fields should default to NA, got %q", gotKey.BillingData.LastName)
	}
}

func TestAuthenticateFailureMapsToGatewayAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.CreatePaymentSession(context.Background(), RegisterOrderParams{
		MerchantOrderID: "ord-uuid-1",
		AmountCents:     50000,
		Currency:        "EGP",
	}, BillingData{})
	if err == nil {
		t.Fatalf("expected error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeGatewayAuth {
		t.Fatalf("expected %s, got %s", pkgerrors.CodeGatewayAuth, typed.Code())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["step"] != "authenticate" {
		t.Fatalf("expected authenticate step in details, got %v", typed.Details())
	}
}

func TestRegisterOrderFailureMapsToGatewayOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case authPath:
			json.NewEncoder(w).Encode(map[string]string{"token": "auth-token"})
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"duplicate"}`))
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.CreatePaymentSession(context.Background(), RegisterOrderParams{
		MerchantOrderID: "ord-uuid-1",
		AmountCents:     50000,
		Currency:        "EGP",
	}, BillingData{})

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayOrder {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeGatewayOrder, err)
	}
}

func TestRefund(t *testing.T) {
	var gotRefund refundRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != refundPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRefund); err != nil {
			t.Errorf("decode refund request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": 5005, "pending": true, "success": false})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, err := client.Refund(context.Background(), "auth-token", RefundParams{
		TransactionRef: "1001",
		AmountCents:    20000,
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	if result.RefundRef != "5005" {
		t.Fatalf("unexpected refund ref %s", result.RefundRef)
	}
	if !result.Pending {
		t.Fatalf("expected pending refund")
	}
	if gotRefund.TransactionID != "1001" || gotRefund.AmountCents != 20000 {
		t.Fatalf("unexpected refund request %+v", gotRefund)
	}
}

func TestRefundFailureMapsToGatewayRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"already refunded"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.Refund(context.Background(), "auth-token", RefundParams{
		TransactionRef: "1001",
		AmountCents:    20000,
	})

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayRefund {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeGatewayRefund, err)
	}
}
