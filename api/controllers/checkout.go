package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/api/middleware"
	"github.com/karimfahmy/nilecart-backend/api/responses"
	"github.com/karimfahmy/nilecart-backend/api/validators"
	checkoutsvc "github.com/karimfahmy/nilecart-backend/internal/checkout"
	"github.com/karimfahmy/nilecart-backend/internal/pricing"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/types"
)

type checkoutLineRequest struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty" validate:"omitempty,uuid4"`
	SKU            string     `json:"sku" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	UnitPriceCents int64      `json:"unit_price_cents" validate:"required,gt=0"`
	Qty            int        `json:"qty" validate:"required,gt=0"`
}

type checkoutAddressRequest struct {
	RecipientName string  `json:"recipient_name" validate:"required"`
	Phone         string  `json:"phone" validate:"required"`
	Line1         string  `json:"line1" validate:"required"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city" validate:"required"`
	Governorate   string  `json:"governorate" validate:"required"`
	PostalCode    *string `json:"postal_code,omitempty"`
	Country       string  `json:"country"`
}

type checkoutRequest struct {
	Email         string                 `json:"email" validate:"required,email"`
	Items         []checkoutLineRequest  `json:"items" validate:"required,min=1,dive"`
	Address       checkoutAddressRequest `json:"address" validate:"required"`
	DiscountCents int64                  `json:"discount_cents" validate:"gte=0"`
	RateID        string                 `json:"rate_id"`
}

type checkoutResponse struct {
	Order          orderResponse `json:"order"`
	AccessToken    string        `json:"access_token"`
	GatewayOrderID int64         `json:"gateway_order_id"`
	PaymentToken   string        `json:"payment_token"`
}

// Checkout opens an order from the submitted cart and returns the payment
// token the storefront hands to the provider's widget. The access token in
// the response is shown exactly once.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.CheckoutInput{
			Email:         payload.Email,
			Lines:         checkoutLines(payload.Items),
			Address:       checkoutAddress(payload.Address),
			DiscountCents: payload.DiscountCents,
			RateID:        payload.RateID,
		}
		if principal, ok := middleware.PrincipalFromContext(r.Context()); ok {
			userID := principal.UserID
			input.UserID = &userID
		}

		result, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:          newOrderResponse(result.Order),
			AccessToken:    result.AccessToken,
			GatewayOrderID: result.GatewayOrderID,
			PaymentToken:   result.PaymentToken,
		})
	}
}

func checkoutLines(items []checkoutLineRequest) []pricing.LineInput {
	lines := make([]pricing.LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.LineInput{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			UnitCents: item.UnitPriceCents,
			Qty:       item.Qty,
		})
	}
	return lines
}

func checkoutAddress(addr checkoutAddressRequest) types.ShippingAddress {
	return types.ShippingAddress{
		RecipientName: addr.RecipientName,
		Phone:         addr.Phone,
		Line1:         addr.Line1,
		Line2:         addr.Line2,
		City:          addr.City,
		Governorate:   addr.Governorate,
		PostalCode:    addr.PostalCode,
		Country:       addr.Country,
	}
}
