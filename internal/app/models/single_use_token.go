package models

import (
	"time"
)

// TokenType scopes a single-use token to its purpose.
type TokenType string

const (
	TokenTypeEmailVerify   TokenType = "EMAIL_VERIFY"
	TokenTypePasswordReset TokenType = "PASSWORD_RESET"
)

// SingleUseToken defines a time-boxed, exactly-once-consumable token based on
// the 'single_use_tokens' table. TokenHash is the SHA-256 digest of the raw
// bearer value; the raw value is never stored. UsedAt is set exactly once.
type SingleUseToken struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"userId" db:"user_id"`
	TokenType TokenType  `json:"tokenType" db:"token_type"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// Valid reports whether the token is unconsumed and unexpired.
func (t *SingleUseToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
