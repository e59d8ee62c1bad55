package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/api/middleware"
	"github.com/karimfahmy/nilecart-backend/api/responses"
	"github.com/karimfahmy/nilecart-backend/api/validators"
	"github.com/karimfahmy/nilecart-backend/internal/refunds"
	"github.com/karimfahmy/nilecart-backend/pkg/db/models"
	"github.com/karimfahmy/nilecart-backend/pkg/enums"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/pagination"
)

type refundRequestBody struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required,uuid4"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
	Reason      string    `json:"reason" validate:"required"`
}

type refundDenyBody struct {
	Reason string `json:"reason" validate:"required"`
}

type refundResponse struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	PaymentID         uuid.UUID  `json:"payment_id"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	Reason            string     `json:"reason"`
	ProviderRefundRef *string    `json:"provider_refund_ref,omitempty"`
	FailureReason     *string    `json:"failure_reason,omitempty"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newRefundResponse(refund *models.Refund) refundResponse {
	if refund == nil {
		return refundResponse{}
	}
	return refundResponse{
		ID:                refund.ID,
		OrderID:           refund.OrderID,
		PaymentID:         refund.PaymentID,
		AmountCents:       refund.AmountCents,
		Currency:          string(refund.Currency),
		Status:            string(refund.Status),
		Reason:            refund.Reason,
		ProviderRefundRef: refund.ProviderRefundRef,
		FailureReason:     refund.FailureReason,
		SettledAt:         refund.SettledAt,
		CreatedAt:         refund.CreatedAt,
	}
}

func refundIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "refundId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund id")
	}
	return id, nil
}

// RequestRefund opens a refund request against an order's captured payment.
// Customers may only refund their own orders; admins may refund any.
func RequestRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload refundRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := principal.UserID
		refund, err := svc.Request(r.Context(), refunds.RequestInput{
			OrderID:     payload.OrderID,
			AmountCents: payload.AmountCents,
			Reason:      payload.Reason,
			RequestedBy: &userID,
			AdminActor:  principal.IsAdmin(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newRefundResponse(refund))
	}
}

// ApproveRefund sends a requested refund to the payment gateway.
func ApproveRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		refundID, err := refundIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Approve(r.Context(), refundID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundResponse(refund))
	}
}

// DenyRefund rejects a requested refund with an operator-supplied reason.
func DenyRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		refundID, err := refundIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundDenyBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.Deny(r.Context(), refundID, payload.Reason, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundResponse(refund))
	}
}

// GetRefund returns one refund by id.
func GetRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		refundID, err := refundIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refund, err := svc.GetByID(r.Context(), refundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newRefundResponse(refund))
	}
}

// ListOrderRefunds returns every refund recorded against one order.
func ListOrderRefunds(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"refunds": list})
	}
}

// ListRefunds returns the paginated back-office refund queue, optionally
// filtered by status or order.
func ListRefunds(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := refundFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func refundFilters(r *http.Request) (refunds.ListFilters, error) {
	var filters refunds.ListFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.RefundStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown refund status").
				WithDetails(map[string]any{"status": raw})
		}
		filters.Status = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("order_id")); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id filter")
		}
		filters.OrderID = &orderID
	}

	return filters, nil
}
