package paymobwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/internal/orders"
	"github.com/karimfahmy/nilecart-backend/internal/refunds"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/metrics"
	"github.com/karimfahmy/nilecart-backend/pkg/paymob"
)

// Channel names used for logging and metrics labels.
const (
	ChannelWebhook  = "webhook"
	ChannelRedirect = "redirect"
)

type orderFinalizer interface {
	Finalize(ctx context.Context, input orders.FinalizeInput) (*orders.FinalizeResult, error)
	RotateAccessToken(ctx context.Context, id uuid.UUID) (string, error)
}

type refundFinalizer interface {
	Finalize(ctx context.Context, input refunds.FinalizeInput) (*refunds.FinalizeResult, error)
}

// Outcome reports what a callback did so the controller can answer the
// gateway without leaking internals.
type Outcome struct {
	OrderID          uuid.UUID
	IsRefund         bool
	Success          bool
	Verified         bool
	MatchedOrdering  string
	AlreadyProcessed bool
	Ignored          bool
}

// RedirectOutcome extends Outcome with the browser hand-back fields.
type RedirectOutcome struct {
	Outcome
	AccessToken string
}

type ServiceParams struct {
	Orders                 orderFinalizer
	Refunds                refundFinalizer
	HMACSecret             string
	AllowUnverifiedWebhook bool
	Metrics                *metrics.CallbackMetrics
	Logger                 *logger.Logger
}

// Service verifies and routes Paymob transaction callbacks. The webhook and
// redirect channels carry the same payload shape; both funnel into the same
// finalizers so whichever arrives first settles the transaction.
type Service struct {
	orders          orderFinalizer
	refunds         refundFinalizer
	hmacSecret      string
	allowUnverified bool
	metrics         *metrics.CallbackMetrics
	logg            *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders finalizer required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds finalizer required")
	}
	if params.HMACSecret == "" && !params.AllowUnverifiedWebhook {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "hmac secret required")
	}
	return &Service{
		orders:          params.Orders,
		refunds:         params.Refunds,
		hmacSecret:      params.HMACSecret,
		allowUnverified: params.AllowUnverifiedWebhook,
		metrics:         params.Metrics,
		logg:            params.Logger,
	}, nil
}

// HandleWebhook processes a server-push callback. The signature arrives as a
// query parameter alongside the JSON body.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, providedHMAC string) (*Outcome, error) {
	start := time.Now()
	outcome, err := s.handleWebhook(ctx, body, providedHMAC)
	s.observe(ChannelWebhook, start, outcome, err)
	return outcome, err
}

func (s *Service) handleWebhook(ctx context.Context, body []byte, providedHMAC string) (*Outcome, error) {
	callback, err := paymob.ParseWebhook(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed callback payload")
	}

	ordering, verified := paymob.VerifySignature(s.hmacSecret, callback.SignatureFields(), providedHMAC)
	if !verified {
		if !s.allowUnverified {
			return nil, pkgerrors.New(pkgerrors.CodeSignature, "callback signature mismatch")
		}
		if s.logg != nil {
			s.logg.Warn(ctx, "processing unverified webhook, signature bypass is enabled")
		}
	}

	return s.route(ctx, callback, ChannelWebhook, body, verified, ordering)
}

// HandleRedirect processes the browser return leg. Unlike the webhook
// channel, an invalid signature is always rejected here: the query string
// passed through the customer's browser.
func (s *Service) HandleRedirect(ctx context.Context, query url.Values) (*RedirectOutcome, error) {
	start := time.Now()
	outcome, err := s.handleRedirect(ctx, query)
	if outcome != nil {
		s.observe(ChannelRedirect, start, &outcome.Outcome, err)
	} else {
		s.observe(ChannelRedirect, start, nil, err)
	}
	return outcome, err
}

func (s *Service) handleRedirect(ctx context.Context, query url.Values) (*RedirectOutcome, error) {
	callback, err := paymob.ParseRedirect(query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed redirect parameters")
	}

	ordering, verified := paymob.VerifySignature(s.hmacSecret, callback.SignatureFields(), query.Get("hmac"))
	if !verified {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "redirect signature mismatch")
	}

	payload, _ := json.Marshal(query)
	outcome, err := s.route(ctx, callback, ChannelRedirect, payload, true, ordering)
	if err != nil {
		return nil, err
	}

	result := &RedirectOutcome{Outcome: *outcome}
	if outcome.Success && !outcome.IsRefund && outcome.OrderID != uuid.Nil {
		token, err := s.orders.RotateAccessToken(ctx, outcome.OrderID)
		if err != nil {
			return nil, err
		}
		result.AccessToken = token
	}
	return result, nil
}

func (s *Service) route(ctx context.Context, callback *paymob.TransactionCallback, channel string, payload []byte, verified bool, ordering string) (*Outcome, error) {
	outcome := &Outcome{
		IsRefund:        callback.IsRefund,
		Success:         callback.Success,
		Verified:        verified,
		MatchedOrdering: ordering,
	}

	if callback.IsRefund {
		result, err := s.refunds.Finalize(ctx, refunds.FinalizeInput{
			ProviderRefundRef: callback.TransactionID,
			Success:           callback.Success,
			RawPayload:        payload,
		})
		if err != nil {
			return nil, err
		}
		outcome.Ignored = result.Ignored
		outcome.AlreadyProcessed = result.AlreadyProcessed
		if result.Refund != nil {
			outcome.OrderID = result.Refund.OrderID
		}
		return outcome, nil
	}

	if callback.MerchantOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant order id missing")
	}
	orderID, err := uuid.Parse(callback.MerchantOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "merchant order id is not an order id")
	}

	result, err := s.orders.Finalize(ctx, orders.FinalizeInput{
		OrderID:        orderID,
		ProviderTxnRef: callback.TransactionID,
		AmountCents:    callback.AmountCents,
		Success:        callback.Success,
		Source:         channel,
		RawPayload:     payload,
	})
	if err != nil {
		return nil, err
	}
	outcome.OrderID = orderID
	outcome.AlreadyProcessed = result.AlreadyProcessed
	outcome.Success = result.Confirmed || (result.AlreadyProcessed && callback.Success)
	return outcome, nil
}

func (s *Service) observe(channel string, start time.Time, outcome *Outcome, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(channel, time.Since(start))
	s.metrics.IncOutcome(channel, outcomeLabel(outcome, err))
}

func outcomeLabel(outcome *Outcome, err error) string {
	switch {
	case err != nil:
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeSignature {
			return "signature_invalid"
		}
		return "error"
	case outcome == nil:
		return "error"
	case outcome.Ignored:
		return "ignored"
	case outcome.AlreadyProcessed:
		return "replay"
	case outcome.IsRefund:
		return fmt.Sprintf("refund_%t", outcome.Success)
	default:
		return fmt.Sprintf("payment_%t", outcome.Success)
	}
}
