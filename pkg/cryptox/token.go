package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Random token sizes (in bytes before encoding).
const (
	// TokenSize128 suits OAuth state values and other short-lived nonces.
	TokenSize128 = 16
	// TokenSize256 suits seal keys.
	TokenSize256 = 32
)

// GenerateToken returns size random bytes encoded as base64url without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a short, deterministic, non-reversible label for a
// bearer token so logs can correlate tokens without leaking them.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:9])
}
