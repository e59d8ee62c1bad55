package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/karimfahmy/nilecart-backend/api/responses"
	paymobwebhook "github.com/karimfahmy/nilecart-backend/internal/webhooks/paymob"
	"github.com/karimfahmy/nilecart-backend/pkg/config"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
)

type PaymobWebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, providedHMAC string) (*paymobwebhook.Outcome, error)
	HandleRedirect(ctx context.Context, query url.Values) (*paymobwebhook.RedirectOutcome, error)
}

type paymobWebhookGuard interface {
	CheckAndMark(ctx context.Context, txnRef string) (bool, error)
	Delete(ctx context.Context, txnRef string) error
}

// txnRefFromBody pulls the transaction id out of the raw body for the Redis
// guard without fully decoding the callback. An unreadable id skips the guard
// and lets the database constraint catch replays.
func txnRefFromBody(body []byte) string {
	var envelope struct {
		Obj struct {
			ID json.Number `json:"id"`
		} `json:"obj"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Obj.ID.String()
}

// PaymobWebhook handles the provider's server-push transaction callback. The
// HMAC signature arrives as a query parameter alongside the JSON body.
func PaymobWebhook(svc PaymobWebhookService, guard paymobWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		txnRef := txnRefFromBody(body)
		if txnRef != "" {
			alreadySeen, err := guard.CheckAndMark(ctx, txnRef)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadySeen {
				responses.WriteSuccess(w, map[string]string{"status": "replay"})
				return
			}
		}

		outcome, err := svc.HandleWebhook(ctx, body, r.URL.Query().Get("hmac"))
		if err != nil {
			if txnRef != "" {
				_ = guard.Delete(ctx, txnRef)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paymob callback %s processed", txnRef))
		}
		responses.WriteSuccess(w, map[string]any{
			"status":            webhookStatus(outcome),
			"already_processed": outcome.AlreadyProcessed,
		})
	}
}

func webhookStatus(outcome *paymobwebhook.Outcome) string {
	switch {
	case outcome.Ignored:
		return "ignored"
	case outcome.AlreadyProcessed:
		return "replay"
	default:
		return "processed"
	}
}

// PaymobRedirect handles the browser return leg. The customer lands here
// after the payment widget, so every path ends in a storefront redirect
// rather than a JSON error.
func PaymobRedirect(svc PaymobWebhookService, storefront config.StorefrontConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			redirectToCart(w, r, storefront, "processing_error")
			return
		}

		outcome, err := svc.HandleRedirect(ctx, r.URL.Query())
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "payment redirect rejected", err)
			}
			redirectToCart(w, r, storefront, redirectErrorCode(err))
			return
		}

		if !outcome.Success || outcome.IsRefund {
			redirectToCart(w, r, storefront, "payment_failed")
			return
		}
		if outcome.AccessToken == "" {
			redirectToCart(w, r, storefront, "missing_data")
			return
		}

		target := fmt.Sprintf("%s?orderId=%s&accessToken=%s",
			storefront.ConfirmationURL(), outcome.OrderID, url.QueryEscape(outcome.AccessToken))
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func redirectToCart(w http.ResponseWriter, r *http.Request, storefront config.StorefrontConfig, code string) {
	target := fmt.Sprintf("%s?error=%s", storefront.CartURL(), code)
	http.Redirect(w, r, target, http.StatusFound)
}

func redirectErrorCode(err error) string {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeSignature:
		return "invalid_signature"
	case pkgerrors.CodeValidation:
		return "missing_data"
	default:
		return "processing_error"
	}
}
