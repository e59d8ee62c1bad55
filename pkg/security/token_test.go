package security

import (
	"strings"
	"testing"
)

func TestNewAccessToken(t *testing.T) {
	token, digest, err := NewAccessToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" || digest == "" {
		t.Fatalf("expected non-empty token and digest")
	}
	if strings.Contains(digest, token) {
		t.Fatalf("digest must not embed the raw token")
	}
	if len(digest) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(digest))
	}

	other, _, err := NewAccessToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == token {
		t.Fatalf("tokens must be unique")
	}
}

func TestVerifyToken(t *testing.T) {
	token, digest, err := NewAccessToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !VerifyToken(token, digest) {
		t.Fatalf("expected valid token to verify")
	}
	if VerifyToken(token+"x", digest) {
		t.Fatalf("tampered token must fail")
	}
	if VerifyToken("", digest) {
		t.Fatalf("empty token must fail")
	}
	if VerifyToken(token, "") {
		t.Fatalf("empty digest must fail")
	}
}
