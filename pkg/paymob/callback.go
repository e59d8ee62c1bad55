package paymob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TransactionCallback is the provider's transaction notification, delivered
// either as a JSON webhook body or as redirect query parameters. The same
// shape covers payment captures and refund settlements; IsRefund routes
// between them.
type TransactionCallback struct {
	TransactionID   string
	AmountCents     int64
	Currency        string
	Success         bool
	Pending         bool
	IsRefund        bool
	IsRefunded      bool
	IsVoided        bool
	GatewayOrderID  string
	MerchantOrderID string

	// signatureFields holds the canonical string forms used for HMAC
	// recomputation, keyed by provider field name.
	signatureFields map[string]string
}

// SignatureFields exposes the canonical field map for verification.
func (t *TransactionCallback) SignatureFields() map[string]string {
	return t.signatureFields
}

type webhookEnvelope struct {
	Type string          `json:"type"`
	Obj  json.RawMessage `json:"obj"`
}

type webhookTransaction struct {
	ID          json.Number `json:"id"`
	AmountCents json.Number `json:"amount_cents"`
	Currency    string      `json:"currency"`
	Success     bool        `json:"success"`
	Pending     bool        `json:"pending"`
	IsRefund    bool        `json:"is_refund"`
	IsRefunded  bool        `json:"is_refunded"`
	IsVoided    bool        `json:"is_voided"`
	Order       struct {
		ID              json.Number `json:"id"`
		MerchantOrderID string      `json:"merchant_order_id"`
	} `json:"order"`
}

// ParseWebhook decodes a server-push callback body. The HMAC arrives as a
// query parameter, not in the body, so it is supplied separately by the
// controller.
func ParseWebhook(body []byte) (*TransactionCallback, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if len(envelope.Obj) == 0 {
		return nil, fmt.Errorf("webhook envelope missing obj")
	}

	var txn webhookTransaction
	if err := json.Unmarshal(envelope.Obj, &txn); err != nil {
		return nil, fmt.Errorf("decode webhook transaction: %w", err)
	}

	amount, err := txn.AmountCents.Int64()
	if err != nil {
		return nil, fmt.Errorf("parse amount_cents: %w", err)
	}

	fields, err := signatureFieldsFromObj(envelope.Obj)
	if err != nil {
		return nil, err
	}

	return &TransactionCallback{
		TransactionID:   txn.ID.String(),
		AmountCents:     amount,
		Currency:        txn.Currency,
		Success:         txn.Success,
		Pending:         txn.Pending,
		IsRefund:        txn.IsRefund,
		IsRefunded:      txn.IsRefunded,
		IsVoided:        txn.IsVoided,
		GatewayOrderID:  txn.Order.ID.String(),
		MerchantOrderID: txn.Order.MerchantOrderID,
		signatureFields: fields,
	}, nil
}

// ParseRedirect decodes a browser-redirect callback from query parameters.
// Values are kept verbatim for signature recomputation.
func ParseRedirect(query url.Values) (*TransactionCallback, error) {
	get := func(name string) string { return query.Get(name) }

	amountRaw := get("amount_cents")
	amount, err := strconv.ParseInt(amountRaw, 10, 64)
	if amountRaw != "" && err != nil {
		return nil, fmt.Errorf("parse amount_cents: %w", err)
	}

	fields := make(map[string]string, len(signatureOrderings[0].fields))
	for _, name := range signatureOrderings[0].fields {
		fields[name] = get(name)
	}

	return &TransactionCallback{
		TransactionID:   get("id"),
		AmountCents:     amount,
		Currency:        get("currency"),
		Success:         parseBoolParam(get("success")),
		Pending:         parseBoolParam(get("pending")),
		IsRefund:        parseBoolParam(get("is_refund")),
		IsRefunded:      parseBoolParam(get("is_refunded")),
		IsVoided:        parseBoolParam(get("is_voided")),
		GatewayOrderID:  get("order"),
		MerchantOrderID: get("merchant_order_id"),
		signatureFields: fields,
	}, nil
}

// signatureFieldsFromObj rebuilds the provider's string forms from the raw
// JSON object. Numbers keep their original digits, booleans render as
// "true"/"false", nested order id maps to the "order" key.
func signatureFieldsFromObj(obj json.RawMessage) (map[string]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(obj))
	decoder.UseNumber()

	var generic map[string]any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode webhook fields: %w", err)
	}

	fields := make(map[string]string, len(signatureOrderings[0].fields))
	for _, name := range signatureOrderings[0].fields {
		fields[name] = lookupField(generic, name)
	}
	return fields, nil
}

func lookupField(generic map[string]any, name string) string {
	if name == "order" {
		if order, ok := generic["order"].(map[string]any); ok {
			return stringifyField(order["id"])
		}
		return stringifyField(generic["order"])
	}
	if strings.HasPrefix(name, "source_data.") {
		if source, ok := generic["source_data"].(map[string]any); ok {
			return stringifyField(source[strings.TrimPrefix(name, "source_data.")])
		}
		return ""
	}
	return stringifyField(generic[name])
}

func stringifyField(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func parseBoolParam(value string) bool {
	return strings.EqualFold(value, "true")
}
