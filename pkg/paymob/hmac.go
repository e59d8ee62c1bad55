package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Callback signatures are HMAC-SHA512 over a fixed-order concatenation of
// transaction fields. The authoritative order has drifted across provider
// documentation revisions, so verification tries every ordering we have seen
// in the wild and accepts the first match. Downstream reconciliation is
// idempotent and matches amounts and references, which bounds the damage of
// this permissiveness.
//
// TODO: narrow to a single ordering once the current one is confirmed with
// provider support.
var signatureOrderings = []signatureOrdering{
	{
		name: "lexicographic_v2",
		fields: []string{
			"amount_cents",
			"created_at",
			"currency",
			"error_occured",
			"has_parent_transaction",
			"id",
			"integration_id",
			"is_3d_secure",
			"is_auth",
			"is_capture",
			"is_refunded",
			"is_standalone_payment",
			"is_voided",
			"order",
			"owner",
			"pending",
			"source_data.pan",
			"source_data.sub_type",
			"source_data.type",
			"success",
		},
	},
	{
		name: "legacy_v1",
		fields: []string{
			"amount_cents",
			"created_at",
			"currency",
			"error_occured",
			"has_parent_transaction",
			"id",
			"integration_id",
			"is_3d_secure",
			"is_auth",
			"is_capture",
			"is_refunded",
			"is_standalone_payment",
			"is_voided",
			"order",
			"owner",
			"pending",
			"source_data.pan",
			"source_data.type",
			"source_data.sub_type",
			"success",
		},
	},
}

type signatureOrdering struct {
	name   string
	fields []string
}

// ComputeSignature concatenates the field values in the given order and
// returns the hex HMAC-SHA512.
func ComputeSignature(secret string, fields map[string]string, ordering []string) string {
	var b strings.Builder
	for _, name := range ordering {
		b.WriteString(fields[name])
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the provided hex signature against every supported
// field ordering and reports which one matched. Comparison is constant time
// per ordering.
func VerifySignature(secret string, fields map[string]string, provided string) (string, bool) {
	provided = strings.ToLower(strings.TrimSpace(provided))
	if secret == "" || provided == "" {
		return "", false
	}

	expected := []byte(provided)
	for _, ordering := range signatureOrderings {
		computed := []byte(ComputeSignature(secret, fields, ordering.fields))
		if hmac.Equal(computed, expected) {
			return ordering.name, true
		}
	}
	return "", false
}
