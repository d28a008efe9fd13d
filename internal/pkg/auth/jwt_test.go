package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestJWTService(accessExp, refreshExp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{
		AccessSecret:    "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenExp:  accessExp,
		RefreshTokenExp: refreshExp,
		TokenIssuer:     "test",
	})
}

func TestGenerateTokenPairRoundTrip(t *testing.T) {
	svc := newTestJWTService(15*time.Minute, 168*time.Hour)

	access, refresh, expiresIn, refreshExpiresIn, err := svc.GenerateTokenPair(42, "user@example.com", []string{"PARTICIPANT"}, "sid-1")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("unexpected expiresIn %d", expiresIn)
	}
	if refreshExpiresIn != int64((168 * time.Hour).Seconds()) {
		t.Errorf("unexpected refreshExpiresIn %d", refreshExpiresIn)
	}

	claims, err := svc.ValidateToken(access, ClassAccess)
	if err != nil {
		t.Fatalf("access token failed validation: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "user@example.com" || claims.SessionID != "sid-1" {
		t.Errorf("unexpected access claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "PARTICIPANT" {
		t.Errorf("unexpected roles: %v", claims.Roles)
	}

	refreshClaims, err := svc.ValidateToken(refresh, ClassRefresh)
	if err != nil {
		t.Fatalf("refresh token failed validation: %v", err)
	}
	if refreshClaims.SessionID != "sid-1" {
		t.Errorf("refresh token carries wrong session id %q", refreshClaims.SessionID)
	}
}

func TestSecretClassesAreDisjoint(t *testing.T) {
	svc := newTestJWTService(15*time.Minute, 168*time.Hour)

	access, refresh, _, _, err := svc.GenerateTokenPair(1, "a@b.com", nil, "sid")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}

	if _, err := svc.ValidateToken(access, ClassRefresh); err == nil {
		t.Error("access token validated with the refresh secret")
	}
	if _, err := svc.ValidateToken(refresh, ClassAccess); err == nil {
		t.Error("refresh token validated with the access secret")
	}
}

func TestExpiredToken(t *testing.T) {
	svc := newTestJWTService(-1*time.Minute, -1*time.Minute)

	token, err := svc.Sign(1, "a@b.com", nil, "sid", ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	_, err = svc.ValidateToken(token, ClassAccess)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}

	// DecodeUnchecked must still read claims out of an expired token.
	claims := svc.DecodeUnchecked(token)
	if claims == nil || claims.SessionID != "sid" {
		t.Errorf("DecodeUnchecked failed on expired token: %+v", claims)
	}
}

func TestDecodeUncheckedGarbage(t *testing.T) {
	svc := newTestJWTService(time.Minute, time.Minute)

	if claims := svc.DecodeUnchecked(""); claims != nil {
		t.Error("expected nil claims for empty token")
	}
	if claims := svc.DecodeUnchecked("not.a.jwt"); claims != nil {
		t.Error("expected nil claims for garbage token")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := newTestJWTService(time.Minute, time.Minute)

	token, err := svc.Sign(1, "a@b.com", nil, "sid", ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := svc.ValidateToken(tampered, ClassAccess); err == nil {
		t.Error("tampered token passed validation")
	}
}

func TestValidateAndExtractClaims(t *testing.T) {
	svc := newTestJWTService(time.Minute, time.Minute)

	if _, err := svc.ValidateAndExtractClaims(""); err == nil {
		t.Error("empty token accepted")
	}

	token, err := svc.Sign(7, "user@example.com", []string{"AUTHOR"}, "sid", ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	claims, err := svc.ValidateAndExtractClaims(token)
	if err != nil {
		t.Fatalf("ValidateAndExtractClaims returned error: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("unexpected user id %d", claims.UserID)
	}

	// Refresh tokens must not pass access validation.
	refreshToken, err := svc.Sign(7, "user@example.com", nil, "sid", ClassRefresh)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if _, err := svc.ValidateAndExtractClaims(refreshToken); err == nil {
		t.Error("refresh token passed access validation")
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := ExtractBearerToken(""); err == nil {
		t.Error("empty header accepted")
	}

	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Errorf("unexpected result %q, %v", token, err)
	}
}
