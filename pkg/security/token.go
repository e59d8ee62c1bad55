package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const accessTokenBytes = 32

// NewAccessToken generates an opaque guest order token and the digest we
// persist. The raw token is returned to the caller exactly once and is never
// stored.
func NewAccessToken() (token string, digest string, err error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, DigestToken(token), nil
}

// DigestToken hashes a raw token the same way NewAccessToken does.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyToken compares a presented raw token against a stored digest in
// constant time.
func VerifyToken(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	computed := DigestToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
