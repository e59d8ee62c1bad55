package controllers

import (
	"net/http"
	"strings"

	"github.com/karimfahmy/nilecart-backend/api/responses"
	"github.com/karimfahmy/nilecart-backend/internal/shipping"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

type shippingRatesResponse struct {
	Governorate string          `json:"governorate"`
	Zone        string          `json:"zone"`
	Rates       []shipping.Rate `json:"rates"`
}

// ShippingRates quotes the delivery options for a governorate. Unknown
// governorates quote the remote fallback zone rather than failing.
func ShippingRates(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		governorate := strings.TrimSpace(r.URL.Query().Get("governorate"))
		if governorate == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "governorate query parameter required"))
			return
		}

		responses.WriteSuccess(w, shippingRatesResponse{
			Governorate: governorate,
			Zone:        shipping.ZoneFor(governorate),
			Rates:       shipping.RatesFor(governorate),
		})
	}
}
