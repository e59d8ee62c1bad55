package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/api/middleware"
	"github.com/karimfahmy/nilecart-backend/api/responses"
	"github.com/karimfahmy/nilecart-backend/api/validators"
	internalorders "github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/outbox"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

// GuestTokenHeader carries the opaque access token a guest received at
// checkout. It is only consulted when the request carries no authenticated
// principal that owns the order.
const GuestTokenHeader = "X-NC-Guest-Token"

type orderItemResponse struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int64      `json:"total_cents"`
}

type orderResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     int64                 `json:"order_number"`
	Email           string                `json:"email"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Currency        string                `json:"currency"`
	SubtotalCents   int64                 `json:"subtotal_cents"`
	ShippingCents   int64                 `json:"shipping_cents"`
	DiscountCents   int64                 `json:"discount_cents"`
	TotalCents      int64                 `json:"total_cents"`
	RefundedCents   int64                 `json:"refunded_cents"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	ShippingZone    string                `json:"shipping_zone"`
	Carrier         *string               `json:"carrier,omitempty"`
	TrackingNumber  *string               `json:"tracking_number,omitempty"`
	Items           []orderItemResponse   `json:"items"`
	ConfirmedAt     *time.Time            `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Email:           order.Email,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		Currency:        string(order.Currency),
		SubtotalCents:   order.SubtotalCents,
		ShippingCents:   order.ShippingCents,
		DiscountCents:   order.DiscountCents,
		TotalCents:      order.TotalCents,
		RefundedCents:   order.RefundedCents,
		ShippingAddress: order.ShippingAddress,
		ShippingZone:    order.ShippingZone,
		Carrier:         order.Carrier,
		TrackingNumber:  order.TrackingNumber,
		Items:           items,
		ConfirmedAt:     order.ConfirmedAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// GetOrder returns one order. An authenticated owner or an admin reads it
// directly; anyone else must present the guest access token issued at
// checkout.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		principal, authed := middleware.PrincipalFromContext(r.Context())
		if authed {
			order, err := svc.GetByID(r.Context(), orderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if principal.IsAdmin() || (order.UserID != nil && *order.UserID == principal.UserID) {
				responses.WriteSuccess(w, newOrderResponse(order))
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(GuestTokenHeader))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		order, err := svc.GetGuestOrder(r.Context(), orderID, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the caller's order history, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUserOrders(r.Context(), principal.UserID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type shipOrderRequest struct {
	Carrier        string `json:"carrier" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// ShipOrder moves a confirmed order into the shipped state and records the
// carrier details.
func ShipOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req shipOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment := internalorders.ShipmentInfo{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
		}
		if err := svc.MarkShipped(r.Context(), orderID, shipment, actorFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "shipped"})
	}
}

// DeliverOrder marks a shipped order as delivered.
func DeliverOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, "delivered", internalorders.Service.MarkDelivered)
}

// CancelOrder cancels an order that has not shipped.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, "cancelled", internalorders.Service.Cancel)
}

func fulfillmentHandler(
	svc internalorders.Service,
	logg *logger.Logger,
	resultStatus string,
	transition func(internalorders.Service, context.Context, uuid.UUID, *outbox.ActorRef) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := transition(svc, r.Context(), orderID, actorFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": resultStatus})
	}
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	return &outbox.ActorRef{UserID: principal.UserID, Role: string(principal.Role)}
}
