package auth

import (
	"strings"
	"testing"
)

func TestPasswordHashAndVerify(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("correct horse battery staple1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash is not in argon2id PHC format: %q", hash)
	}

	if !h.Verify(hash, "correct horse battery staple1") {
		t.Error("Verify rejected the original password")
	}
	if h.Verify(hash, "wrong password 1") {
		t.Error("Verify accepted a wrong password")
	}
}

func TestPasswordHashIsSalted(t *testing.T) {
	h := NewPasswordHasher()

	first, err := h.Hash("samepassword1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := h.Hash("samepassword1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Error("two hashes of the same password are identical, salt is not random")
	}
	if !h.Verify(first, "samepassword1") || !h.Verify(second, "samepassword1") {
		t.Error("salted hashes no longer verify")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewPasswordHasher()

	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=3,p=2$onlyonepart",
		"$bcrypt$whatever$salt$key",
		"$argon2id$v=19$m=abc,t=3,p=2$c2FsdA$a2V5",
	}
	for _, malformed := range cases {
		if h.Verify(malformed, "anything1") {
			t.Errorf("Verify accepted malformed hash %q", malformed)
		}
	}
}
