package models

import (
	"time"
)

// Session defines a login session based on the 'sessions' table. SessionID is
// the 32-hex-char identifier also carried as the sid claim of the session's
// token pair. RefreshTokenHash holds the Argon2id hash of the currently valid
// refresh token; at most one refresh token is valid per session at any time.
type Session struct {
	ID               int64      `json:"id" db:"id"`
	SessionID        string     `json:"sessionId" db:"session_id"`
	UserID           int64      `json:"userId" db:"user_id"`
	RefreshTokenHash string     `json:"-" db:"refresh_token_hash"`
	IPAddress        string     `json:"ipAddress" db:"ip_address"`
	UserAgent        string     `json:"userAgent" db:"user_agent"`
	ExpiresAt        time.Time  `json:"expiresAt" db:"expires_at"`
	LastActiveAt     time.Time  `json:"lastActiveAt" db:"last_active_at"`
	RotatedAt        *time.Time `json:"rotatedAt,omitempty" db:"rotated_at"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
}

// Usable reports whether the session can still mint tokens.
func (s *Session) Usable(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
