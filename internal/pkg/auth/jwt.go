package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWT errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrInvalidFormat = errors.New("invalid token format")
)

// SecretClass selects which signing secret and TTL a token belongs to.
// Access and refresh tokens are never verifiable with each other's secret.
type SecretClass int

const (
	ClassAccess SecretClass = iota
	ClassRefresh
)

// JWTConfig defines JWT configuration settings
type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenExp  time.Duration
	RefreshTokenExp time.Duration
	TokenIssuer     string
}

// JWTService signs and verifies access/refresh tokens.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{
		config: config,
	}
}

// Claims defines the token payload: subject (user id), email, role names and
// the owning session id. No other data is embedded.
type Claims struct {
	UserID    int64    `json:"userId"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateTokenPair creates an access and refresh token pair bound to the
// given session id. Both carry the same claims; only secret and TTL differ.
func (s *JWTService) GenerateTokenPair(userID int64, email string, roles []string, sessionID string) (accessToken, refreshToken string, expiresIn, refreshExpiresIn int64, err error) {
	accessToken, err = s.Sign(userID, email, roles, sessionID, ClassAccess)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err = s.Sign(userID, email, roles, sessionID, ClassRefresh)
	if err != nil {
		return "", "", 0, 0, fmt.Errorf("failed to create refresh token: %w", err)
	}

	expiresIn = int64(s.config.AccessTokenExp.Seconds())
	refreshExpiresIn = int64(s.config.RefreshTokenExp.Seconds())

	return accessToken, refreshToken, expiresIn, refreshExpiresIn, nil
}

// Sign creates a single signed token of the given class.
func (s *JWTService) Sign(userID int64, email string, roles []string, sessionID string, class SecretClass) (string, error) {
	secret, ttl := s.classParams(class)
	now := time.Now()

	claims := &Claims{
		UserID:    userID,
		Email:     email,
		Roles:     roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.TokenIssuer,
			Subject:   fmt.Sprintf("%d", userID),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies the signature and expiry of a token against the
// secret of the given class.
func (s *JWTService) ValidateToken(tokenString string, class SecretClass) (*Claims, error) {
	secret, _ := s.classParams(class)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// DecodeUnchecked extracts claims without verifying the signature or expiry.
// Used only for opportunistic session-id extraction during logout, where a
// garbled or expired token must not abort the attempt. Returns nil when the
// token cannot be parsed at all.
func (s *JWTService) DecodeUnchecked(tokenString string) *Claims {
	if tokenString == "" {
		return nil
	}

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// GetRefreshTokenExpiry returns the expiry time for a refresh token issued now.
func (s *JWTService) GetRefreshTokenExpiry() time.Time {
	return time.Now().Add(s.config.RefreshTokenExp)
}

func (s *JWTService) classParams(class SecretClass) (string, time.Duration) {
	if class == ClassRefresh {
		return s.config.RefreshSecret, s.config.RefreshTokenExp
	}
	return s.config.AccessSecret, s.config.AccessTokenExp
}

// ExtractBearerToken extracts the token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidFormat
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), nil
	}

	return authHeader, nil
}

// ValidateAndExtractClaims validates an access token and sanity-checks the
// identifying claims.
func (s *JWTService) ValidateAndExtractClaims(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.ValidateToken(tokenString, ClassAccess)
	if err != nil {
		return nil, err
	}

	if claims.UserID <= 0 || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
