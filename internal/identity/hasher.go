// Package identity one-way hashes customer identifiers for the conversions API.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashEmail returns the hex SHA-256 of the email exactly as given.
func HashEmail(email string) string {
	return sum(email)
}

// HashPhone strips everything but ASCII digits and returns the hex SHA-256 of the rest.
func HashPhone(phone string) string {
	return sum(Digits(phone))
}

// Digits returns only the decimal digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
