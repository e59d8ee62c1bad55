package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/internal/refunds"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
)

type testRefundsService struct {
	requestFn func(ctx context.Context, input refunds.RequestInput) (*models.Refund, error)
	approveFn func(ctx context.Context, refundID uuid.UUID, actor *outbox.ActorRef) (*models.Refund, error)
	denyFn    func(ctx context.Context, refundID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Refund, error)
	listFn    func(ctx context.Context, params pagination.Params, filters refunds.ListFilters) (*refunds.RefundList, error)
}

func (s *testRefundsService) Request(ctx context.Context, input refunds.RequestInput) (*models.Refund, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, input)
	}
	return nil, nil
}

func (s *testRefundsService) Approve(ctx context.Context, refundID uuid.UUID, actor *outbox.ActorRef) (*models.Refund, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, refundID, actor)
	}
	return nil, nil
}

func (s *testRefundsService) Deny(ctx context.Context, refundID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Refund, error) {
	if s.denyFn != nil {
		return s.denyFn(ctx, refundID, reason, actor)
	}
	return nil, nil
}

func (s *testRefundsService) Finalize(ctx context.Context, input refunds.FinalizeInput) (*refunds.FinalizeResult, error) {
	return nil, nil
}

func (s *testRefundsService) GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	return nil, nil
}

func (s *testRefundsService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]refunds.RefundSummary, error) {
	return nil, nil
}

func (s *testRefundsService) List(ctx context.Context, params pagination.Params, filters refunds.ListFilters) (*refunds.RefundList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params, filters)
	}
	return &refunds.RefundList{}, nil
}

func sampleRefund(orderID uuid.UUID) *models.Refund {
	return &models.Refund{
		ID:          uuid.New(),
		OrderID:     orderID,
		PaymentID:   uuid.New(),
		AmountCents: 20000,
		Currency:    enums.CurrencyEGP,
		Status:      enums.RefundStatusRequested,
		Reason:      "damaged on arrival",
	}
}

func TestRequestRefundCreated(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &testRefundsService{
		requestFn: func(ctx context.Context, input refunds.RequestInput) (*models.Refund, error) {
			if input.OrderID != orderID {
				t.Fatalf("unexpected order %s", input.OrderID)
			}
			if input.AmountCents != 20000 {
				t.Fatalf("unexpected amount %d", input.AmountCents)
			}
			if input.RequestedBy == nil || *input.RequestedBy != userID {
				t.Fatalf("expected requester %s, got %+v", userID, input.RequestedBy)
			}
			if input.AdminActor {
				t.Fatal("customer request marked as admin")
			}
			return sampleRefund(orderID), nil
		},
	}

	body := `{"order_id": "` + orderID.String() + `", "amount_cents": 20000, "reason": "damaged on arrival"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withPrincipal(req, userID, enums.MemberRoleCustomer)

	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data refundResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != string(enums.RefundStatusRequested) {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
}

func TestRequestRefundRequiresAuth(t *testing.T) {
	body := `{"order_id": "` + uuid.NewString() + `", "amount_cents": 20000, "reason": "damaged"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	RequestRefund(&testRefundsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestApproveRefund(t *testing.T) {
	adminID := uuid.New()
	refundID := uuid.New()
	svc := &testRefundsService{
		approveFn: func(ctx context.Context, rid uuid.UUID, actor *outbox.ActorRef) (*models.Refund, error) {
			if rid != refundID {
				t.Fatalf("unexpected refund %s", rid)
			}
			if actor == nil || actor.UserID != adminID {
				t.Fatalf("expected admin actor, got %+v", actor)
			}
			refund := sampleRefund(uuid.New())
			refund.Status = enums.RefundStatusProcessing
			return refund, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refunds/"+refundID.String()+"/approve", nil)
	req = withPrincipal(req, adminID, enums.MemberRoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())

	resp := httptest.NewRecorder()
	ApproveRefund(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDenyRefundRequiresReason(t *testing.T) {
	refundID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refunds/"+refundID.String()+"/deny", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req = withPrincipal(req, uuid.New(), enums.MemberRoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())

	resp := httptest.NewRecorder()
	DenyRefund(&testRefundsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDenyRefundPassesReason(t *testing.T) {
	refundID := uuid.New()
	svc := &testRefundsService{
		denyFn: func(ctx context.Context, rid uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Refund, error) {
			if reason != "outside return window" {
				t.Fatalf("unexpected reason %q", reason)
			}
			refund := sampleRefund(uuid.New())
			refund.Status = enums.RefundStatusFailed
			return refund, nil
		},
	}

	body := `{"reason": "outside return window"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refunds/"+refundID.String()+"/deny", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withPrincipal(req, uuid.New(), enums.MemberRoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())

	resp := httptest.NewRecorder()
	DenyRefund(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListRefundsFilters(t *testing.T) {
	orderID := uuid.New()
	svc := &testRefundsService{
		listFn: func(ctx context.Context, params pagination.Params, filters refunds.ListFilters) (*refunds.RefundList, error) {
			if filters.Status == nil || *filters.Status != enums.RefundStatusProcessing {
				t.Fatalf("unexpected status filter %+v", filters.Status)
			}
			if filters.OrderID == nil || *filters.OrderID != orderID {
				t.Fatalf("unexpected order filter %+v", filters.OrderID)
			}
			return &refunds.RefundList{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/refunds?status=processing&order_id="+orderID.String(), nil)
	req = withPrincipal(req, uuid.New(), enums.MemberRoleAdmin)

	resp := httptest.NewRecorder()
	ListRefunds(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListRefundsRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/refunds?status=bogus", nil)
	req = withPrincipal(req, uuid.New(), enums.MemberRoleAdmin)

	resp := httptest.NewRecorder()
	ListRefunds(&testRefundsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
