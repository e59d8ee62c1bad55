package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	paymobwebhook "github.com/karimfahmy/nilecart-backend/internal/webhooks/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/config"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testStorefront() config.StorefrontConfig {
	return config.StorefrontConfig{
		BaseURL:          "https://shop.example.com",
		ConfirmationPath: "/orders/confirmation",
		CartPath:         "/cart",
	}
}

type testWebhookService struct {
	webhookFn  func(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error)
	redirectFn func(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error)
}

func (s *testWebhookService) HandleWebhook(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error) {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, body, providedHMAC)
	}
	return &paymobwebhook.Outcome{}, nil
}

func (s *testWebhookService) HandleRedirect(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error) {
	if s.redirectFn != nil {
		return s.redirectFn(ctx, query)
	}
	return &paymobwebhook.RedirectOutcome{}, nil
}

type testGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func (g *testGuard) CheckAndMark(ctx context.Context, txnRef string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[txnRef] {
		return true, nil
	}
	g.seen[txnRef] = true
	return false, nil
}

func (g *testGuard) Delete(ctx context.Context, txnRef string) error {
	g.deleted = append(g.deleted, txnRef)
	delete(g.seen, txnRef)
	return nil
}

const webhookBody = `{"type": "TRANSACTION", "obj": {"id": 1001, "success": true, "amount_cents": 50000}}`

func TestPaymobWebhookProcessed(t *testing.T) {
	var gotHMAC string
	svc := &testWebhookService{
		webhookFn: func(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error) {
			gotHMAC = providedHMAC
			return &paymobwebhook.Outcome{OrderID: uuid.New(), Success: true, Verified: true}, nil
		},
	}
	guard := &testGuard{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paymob?hmac=abc123", strings.NewReader(webhookBody))
	resp := httptest.NewRecorder()
	PaymobWebhook(svc, guard, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotHMAC != "abc123" {
		t.Fatalf("unexpected hmac %q", gotHMAC)
	}
	if !strings.Contains(resp.Body.String(), `"processed"`) {
		t.Fatalf("expected processed status, got %s", resp.Body.String())
	}
}

func TestPaymobWebhookReplayShortCircuits(t *testing.T) {
	calls := 0
	svc := &testWebhookService{
		webhookFn: func(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error) {
			calls++
			return &paymobwebhook.Outcome{Success: true, Verified: true}, nil
		},
	}
	guard := &testGuard{}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paymob?hmac=abc", strings.NewReader(webhookBody))
		resp := httptest.NewRecorder()
		PaymobWebhook(svc, guard, testLogger())(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("unexpected status %d on attempt %d", resp.Code, i)
		}
	}

	if calls != 1 {
		t.Fatalf("expected one service call, got %d", calls)
	}
}

func TestPaymobWebhookReleasesGuardOnError(t *testing.T) {
	svc := &testWebhookService{
		webhookFn: func(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error) {
			return nil, pkgerrors.New(pkgerrors.CodeSignature, "callback signature mismatch")
		},
	}
	guard := &testGuard{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paymob", strings.NewReader(webhookBody))
	resp := httptest.NewRecorder()
	PaymobWebhook(svc, guard, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "1001" {
		t.Fatalf("expected guard release for 1001, got %v", guard.deleted)
	}
}

func TestPaymobWebhookGuardFailure(t *testing.T) {
	guard := &testGuard{err: errors.New("redis down")}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paymob", strings.NewReader(webhookBody))
	resp := httptest.NewRecorder()
	PaymobWebhook(&testWebhookService{}, guard, testLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestPaymobRedirectSuccess(t *testing.T) {
	orderID := uuid.New()
	svc := &testWebhookService{
		redirectFn: func(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error) {
			return &paymobwebhook.RedirectOutcome{
				Outcome:     paymobwebhook.Outcome{OrderID: orderID, Success: true, Verified: true},
				AccessToken: "fresh-token",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/paymob/redirect?id=1001&success=true", nil)
	resp := httptest.NewRecorder()
	PaymobRedirect(svc, testStorefront(), testLogger())(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	location := resp.Header().Get("Location")
	want := "https://shop.example.com/orders/confirmation?orderId=" + orderID.String() + "&accessToken=fresh-token"
	if location != want {
		t.Fatalf("unexpected location %q", location)
	}
}

func TestPaymobRedirectBadSignature(t *testing.T) {
	svc := &testWebhookService{
		redirectFn: func(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error) {
			return nil, pkgerrors.New(pkgerrors.CodeSignature, "redirect signature mismatch")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/paymob/redirect?id=1001", nil)
	resp := httptest.NewRecorder()
	PaymobRedirect(svc, testStorefront(), testLogger())(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "https://shop.example.com/cart?error=invalid_signature" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestPaymobRedirectFailedPayment(t *testing.T) {
	svc := &testWebhookService{
		redirectFn: func(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error) {
			return &paymobwebhook.RedirectOutcome{
				Outcome: paymobwebhook.Outcome{OrderID: uuid.New(), Success: false, Verified: true},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/paymob/redirect?id=1001&success=false", nil)
	resp := httptest.NewRecorder()
	PaymobRedirect(svc, testStorefront(), testLogger())(resp, req)

	if got := resp.Header().Get("Location"); got != "https://shop.example.com/cart?error=payment_failed" {
		t.Fatalf("unexpected location %q", got)
	}
}
