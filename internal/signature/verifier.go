// Package signature authenticates storefront webhooks.
//
// The storefront signs each delivery with base64(HMAC-SHA256(secret, body)) and
// sends it in a header. Verification runs over the body exactly as received;
// re-encoding the decoded JSON is not byte-stable and would break the digest.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	// ErrMissingSecret means the server has no signing secret. It is a configuration
	// problem, not an authentication failure.
	ErrMissingSecret     = errors.New("webhook signing secret is not configured")
	ErrMissingSignature  = errors.New("webhook signature missing")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
)

// Sign returns the header value the storefront would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is the base64 HMAC-SHA256 of body under secret.
// An empty secret never verifies.
func Verify(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	expected := Sign(secret, body)
	// hmac.Equal is constant time for equal lengths and returns false on a
	// length mismatch without inspecting content.
	return hmac.Equal([]byte(expected), []byte(header))
}

// Verifier holds the process-wide signing secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Configured reports whether a signing secret is present.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Check classifies a request. Errors are generic and never include digests.
func (v *Verifier) Check(body []byte, header string) error {
	if v.secret == "" {
		return ErrMissingSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !Verify(v.secret, body, header) {
		return ErrSignatureMismatch
	}
	return nil
}
