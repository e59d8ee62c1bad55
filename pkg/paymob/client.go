package paymob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/karimfahmy/nilecart-backend/pkg/config"
	pkgerrors "github.com/karimfahmy/nilecart-backend/pkg/errors"
	"github.com/karimfahmy/nilecart-backend/pkg/logger"
	"github.com/karimfahmy/nilecart-backend/pkg/metrics"
)

const (
	authPath       = "/auth/tokens"
	orderPath      = "/ecommerce/orders"
	paymentKeyPath = "/acceptance/payment_keys"
	refundPath     = "/acceptance/void_refund/refund"

	paymentKeyExpirationSecs = 3600
)

var (
	errAPIKeyRequired     = errors.New("paymob api key is required")
	errHMACSecretRequired = errors.New("paymob hmac secret is required")
	errLoggerRequired     = errors.New("paymob logger is required")
)

// Client wraps the Paymob Accept API with centralized auth, timeouts,
// redacted logging, and error mapping. Calls are synchronous round-trips
// with no internal retry loop.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	hmacSecret    string
	integrationID string
	logger        *logger.Logger
	metrics       *metrics.GatewayMetrics
}

// NewClient validates the credentials and builds the wrapper.
func NewClient(cfg config.PaymobConfig, logg *logger.Logger, gm *metrics.GatewayMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil, errHMACSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        apiKey,
		hmacSecret:    secret,
		integrationID: strconv.Itoa(cfg.IntegrationID),
		logger:        logg,
		metrics:       gm,
	}, nil
}

// HMACSecret returns the shared callback signing secret.
func (c *Client) HMACSecret() string {
	if c == nil {
		return ""
	}
	return c.hmacSecret
}

// Authenticate exchanges the API key for a short-lived bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.log(ctx, "request", "authenticate", nil)

	var resp authResponse
	err := c.postJSON(ctx, "authenticate", authPath, authRequest{APIKey: c.apiKey}, &resp)
	if err != nil {
		return "", c.mapError(pkgerrors.CodeGatewayAuth, err, "paymob authenticate failed")
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeGatewayAuth, "paymob authenticate returned empty token")
	}

	c.log(ctx, "response", "authenticate", nil)
	return resp.Token, nil
}

// RegisterOrder creates the gateway-side order mirror.
func (c *Client) RegisterOrder(ctx context.Context, authToken string, params RegisterOrderParams) (int64, error) {
	c.log(ctx, "request", "register_order", map[string]any{
		"merchant_order_id": params.MerchantOrderID,
		"amount_cents":      params.AmountCents,
		"currency":          params.Currency,
	})

	req := registerOrderRequest{
		AuthToken:       authToken,
		DeliveryNeeded:  false,
		AmountCents:     params.AmountCents,
		Currency:        params.Currency,
		MerchantOrderID: params.MerchantOrderID,
		Items:           params.Items,
	}
	if req.Items == nil {
		req.Items = []OrderItem{}
	}

	var resp registerOrderResponse
	if err := c.postJSON(ctx, "register_order", orderPath, req, &resp); err != nil {
		return 0, c.mapError(pkgerrors.CodeGatewayOrder, err, "paymob register order failed")
	}
	if resp.ID == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeGatewayOrder, "paymob register order returned no id")
	}

	c.log(ctx, "response", "register_order", map[string]any{"gateway_order_id": resp.ID})
	return resp.ID, nil
}

// IssuePaymentToken produces the token the client payment widget charges with.
func (c *Client) IssuePaymentToken(ctx context.Context, authToken string, params PaymentKeyParams) (string, error) {
	c.log(ctx, "request", "issue_payment_token", map[string]any{
		"gateway_order_id": params.GatewayOrderID,
		"amount_cents":     params.AmountCents,
	})

	req := paymentKeyRequest{
		AuthToken:     authToken,
		AmountCents:   params.AmountCents,
		Expiration:    paymentKeyExpirationSecs,
		OrderID:       params.GatewayOrderID,
		BillingData:   params.Billing.withDefaults(),
		Currency:      params.Currency,
		IntegrationID: c.integrationID,
	}

	var resp paymentKeyResponse
	if err := c.postJSON(ctx, "issue_payment_token", paymentKeyPath, req, &resp); err != nil {
		return "", c.mapError(pkgerrors.CodeGatewayToken, err, "paymob payment key failed")
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeGatewayToken, "paymob payment key returned empty token")
	}

	c.log(ctx, "response", "issue_payment_token", nil)
	return resp.Token, nil
}

// Refund submits a refund against a captured transaction. Settlement is
// confirmed later via the callback channel, not by this call.
func (c *Client) Refund(ctx context.Context, authToken string, params RefundParams) (*RefundResult, error) {
	c.log(ctx, "request", "refund", map[string]any{
		"transaction_ref": params.TransactionRef,
		"amount_cents":    params.AmountCents,
	})

	req := refundRequest{
		AuthToken:     authToken,
		TransactionID: params.TransactionRef,
		AmountCents:   params.AmountCents,
	}

	var resp refundResponse
	if err := c.postJSON(ctx, "refund", refundPath, req, &resp); err != nil {
		return nil, c.mapError(pkgerrors.CodeGatewayRefund, err, "paymob refund failed")
	}
	ref := resp.ID.String()
	if ref == "" || ref == "0" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRefund, "paymob refund returned no reference")
	}

	result := &RefundResult{
		RefundRef: ref,
		Pending:   resp.Pending,
		Success:   resp.Success,
	}
	c.log(ctx, "response", "refund", map[string]any{
		"refund_ref": result.RefundRef,
		"pending":    result.Pending,
	})
	return result, nil
}

// CreatePaymentSession runs the full authenticate, register, payment key
// handshake. Any failure aborts the sequence with the step recorded in the
// error details.
func (c *Client) CreatePaymentSession(ctx context.Context, order RegisterOrderParams, billing BillingData) (*PaymentSession, error) {
	authToken, err := c.Authenticate(ctx)
	if err != nil {
		return nil, withStep(err, "authenticate")
	}

	gatewayOrderID, err := c.RegisterOrder(ctx, authToken, order)
	if err != nil {
		return nil, withStep(err, "register_order")
	}

	paymentToken, err := c.IssuePaymentToken(ctx, authToken, PaymentKeyParams{
		GatewayOrderID: gatewayOrderID,
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		Billing:        billing,
	})
	if err != nil {
		return nil, withStep(err, "issue_payment_token")
	}

	return &PaymentSession{
		GatewayOrderID: gatewayOrderID,
		PaymentToken:   paymentToken,
	}, nil
}

type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("paymob responded %d: %s", e.status, e.body)
}

func (c *Client) postJSON(ctx context.Context, call, path string, payload, out any) error {
	start := time.Now()
	err := c.doPostJSON(ctx, path, payload, out)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveCall(call, outcome, time.Since(start))
	return err
}

func (c *Client) doPostJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpError{status: resp.StatusCode, body: truncate(string(raw), 512)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) mapError(code pkgerrors.Code, err error, msg string) error {
	return pkgerrors.Wrap(code, err, msg)
}

func withStep(err error, step string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.WithDetails(map[string]any{"step": step})
	}
	return err
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	c.logger.Info(ctx, fmt.Sprintf("paymob %s", phase))
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "key", "secret", "pan", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
