package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/api/middleware"
	internalorders "github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/pkg/auth"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func withPrincipal(r *http.Request, userID uuid.UUID, role enums.MemberRole) *http.Request {
	principal := auth.Principal{UserID: userID, Email: "user@example.com", Role: role}
	return r.WithContext(middleware.WithPrincipal(r.Context(), principal))
}

type testOrdersService struct {
	getByID   func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	getGuest  func(ctx context.Context, id uuid.UUID, token string) (*models.Order, error)
	listUser  func(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error)
	markShip  func(ctx context.Context, orderID uuid.UUID, shipment internalorders.ShipmentInfo, actor *outbox.ActorRef) error
	cancelFn  func(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
	deliverFn func(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
}

func (s *testOrdersService) Create(ctx context.Context, input internalorders.CreateInput) (*internalorders.CreateResult, error) {
	return nil, nil
}

func (s *testOrdersService) SetProviderOrderRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	return nil
}

func (s *testOrdersService) Finalize(ctx context.Context, input internalorders.FinalizeInput) (*internalorders.FinalizeResult, error) {
	return nil, nil
}

func (s *testOrdersService) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.getByID != nil {
		return s.getByID(ctx, id)
	}
	return nil, nil
}

func (s *testOrdersService) GetGuestOrder(ctx context.Context, id uuid.UUID, token string) (*models.Order, error) {
	if s.getGuest != nil {
		return s.getGuest(ctx, id, token)
	}
	return nil, nil
}

func (s *testOrdersService) RotateAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	return "", nil
}

func (s *testOrdersService) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	if s.listUser != nil {
		return s.listUser(ctx, userID, params)
	}
	return &internalorders.OrderList{}, nil
}

func (s *testOrdersService) MarkShipped(ctx context.Context, orderID uuid.UUID, shipment internalorders.ShipmentInfo, actor *outbox.ActorRef) error {
	if s.markShip != nil {
		return s.markShip(ctx, orderID, shipment, actor)
	}
	return nil
}

func (s *testOrdersService) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	if s.deliverFn != nil {
		return s.deliverFn(ctx, orderID, actor)
	}
	return nil
}

func (s *testOrdersService) Cancel(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID, actor)
	}
	return nil
}

func sampleOrder(userID *uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   1001,
		UserID:        userID,
		Email:         "mona@example.com",
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusCaptured,
		Currency:      enums.CurrencyEGP,
		SubtotalCents: 45000,
		ShippingCents: 5000,
		TotalCents:    50000,
		ShippingAddress: types.ShippingAddress{
			RecipientName: "Mona Hassan",
			Phone:         "+201000000000",
			Line1:         "12 Tahrir St",
			City:          "Cairo",
			Governorate:   "Cairo",
			Country:       "EG",
		},
		ShippingZone: "greater_cairo",
		CreatedAt:    time.Now(),
	}
}

func TestGetOrderOwner(t *testing.T) {
	userID := uuid.New()
	order := sampleOrder(&userID)
	svc := &testOrdersService{
		getByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			if id != order.ID {
				t.Fatalf("unexpected order id %s", id)
			}
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req = withPrincipal(req, userID, enums.MemberRoleCustomer)
	req = addRouteParam(req, "orderId", order.ID.String())

	resp := httptest.NewRecorder()
	GetOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.OrderNumber != 1001 {
		t.Fatalf("unexpected order number %d", envelope.Data.OrderNumber)
	}
	if envelope.Data.TotalCents != 50000 {
		t.Fatalf("unexpected total %d", envelope.Data.TotalCents)
	}
}

func TestGetOrderGuestToken(t *testing.T) {
	order := sampleOrder(nil)
	svc := &testOrdersService{
		getGuest: func(ctx context.Context, id uuid.UUID, token string) (*models.Order, error) {
			if token != "guest-token" {
				t.Fatalf("unexpected token %q", token)
			}
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req.Header.Set(GuestTokenHeader, "guest-token")
	req = addRouteParam(req, "orderId", order.ID.String())

	resp := httptest.NewRecorder()
	GetOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGetOrderAnonymousWithoutToken(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = addRouteParam(req, "orderId", orderID.String())

	resp := httptest.NewRecorder()
	GetOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetOrderOtherUserFallsBackToToken(t *testing.T) {
	ownerID := uuid.New()
	order := sampleOrder(&ownerID)
	svc := &testOrdersService{
		getByID: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return order, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req = withPrincipal(req, uuid.New(), enums.MemberRoleCustomer)
	req = addRouteParam(req, "orderId", order.ID.String())

	resp := httptest.NewRecorder()
	GetOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	req = addRouteParam(req, "orderId", "not-a-uuid")

	resp := httptest.NewRecorder()
	GetOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListOrdersRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	ListOrders(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListOrdersPassesPagination(t *testing.T) {
	userID := uuid.New()
	svc := &testOrdersService{
		listUser: func(ctx context.Context, uid uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if params.Limit != 10 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			if params.Cursor != "abc" {
				t.Fatalf("unexpected cursor %q", params.Cursor)
			}
			return &internalorders.OrderList{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor=abc", nil)
	req = withPrincipal(req, userID, enums.MemberRoleCustomer)

	resp := httptest.NewRecorder()
	ListOrders(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestShipOrderCarriesActor(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		markShip: func(ctx context.Context, oid uuid.UUID, shipment internalorders.ShipmentInfo, actor *outbox.ActorRef) error {
			if oid != orderID {
				t.Fatalf("unexpected order %s", oid)
			}
			if shipment.Carrier != "Bosta" || shipment.TrackingNumber != "BST-4411" {
				t.Fatalf("unexpected shipment %+v", shipment)
			}
			if actor == nil || actor.UserID != adminID {
				t.Fatalf("expected admin actor, got %+v", actor)
			}
			if actor.Role != "admin" {
				t.Fatalf("unexpected actor role %q", actor.Role)
			}
			return nil
		},
	}

	body := strings.NewReader(`{"carrier": "Bosta", "tracking_number": "BST-4411"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/"+orderID.String()+"/ship", body)
	req = withPrincipal(req, adminID, enums.MemberRoleAdmin)
	req = addRouteParam(req, "orderId", orderID.String())

	resp := httptest.NewRecorder()
	ShipOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["status"] != "shipped" {
		t.Fatalf("unexpected status %q", envelope.Data["status"])
	}
}
