package auth

import (
	"encoding/hex"
	"testing"
)

func TestNewBearerToken(t *testing.T) {
	token, err := NewBearerToken()
	if err != nil {
		t.Fatalf("NewBearerToken returned error: %v", err)
	}

	if len(token) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("token is not valid hex: %v", err)
	}

	other, err := NewBearerToken()
	if err != nil {
		t.Fatalf("NewBearerToken returned error: %v", err)
	}
	if token == other {
		t.Error("two bearer tokens are identical")
	}
}

func TestNewSessionID(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID returned error: %v", err)
	}
	if len(sid) != 32 {
		t.Errorf("expected 32 hex characters, got %d", len(sid))
	}
}

func TestHashToken(t *testing.T) {
	digest := HashToken("some-token")

	if len(digest) != 64 {
		t.Errorf("expected 64 hex characters for SHA-256, got %d", len(digest))
	}
	if digest != HashToken("some-token") {
		t.Error("HashToken is not deterministic")
	}
	if digest == HashToken("some-other-token") {
		t.Error("different tokens produced the same digest")
	}
	if digest == "some-token" {
		t.Error("HashToken returned the plaintext token")
	}
}
