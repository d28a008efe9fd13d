package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	bearerTokenBytes = 32
	sessionIDBytes   = 16
)

// NewBearerToken returns a 64-hex-char opaque token for email verification
// and password reset links. The raw value is mailed to the user; only its
// SHA-256 digest is ever stored.
func NewBearerToken() (string, error) {
	return randomHex(bearerTokenBytes)
}

// NewSessionID returns a 32-hex-char session identifier. The same value is
// embedded as the sid claim of the session's access/refresh tokens.
func NewSessionID() (string, error) {
	return randomHex(sessionIDBytes)
}

// HashToken returns the hex SHA-256 digest of an opaque bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
