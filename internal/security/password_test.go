package security

import (
	"bytes"
	"errors"
	"testing"
)

func TestHashPasswordRequiresMinimumLength(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestHashPasswordAndVerify(t *testing.T) {
	password := "this-is-a-long-password"
	hash, err := hashWithRounds(password, minIterations)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(password, hash) {
		t.Fatalf("expected password verification to succeed")
	}
	if VerifyPassword("wrong-password", hash) {
		t.Fatalf("expected wrong password verification to fail")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"v2$1000$c2FsdA$ZGlnZXN0",
		"v1$10$c2FsdA$ZGlnZXN0",
		"v1$1000$!!$ZGlnZXN0",
		"v1$1000$c2FsdA$c2hvcnQ",
	} {
		if VerifyPassword("anything-long", encoded) {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret(32)
	if err != nil {
		t.Fatalf("random secret: %v", err)
	}
	b, _ := RandomSecret(32)
	if a == b {
		t.Fatalf("expected distinct secrets")
	}
	if _, err := RandomSecret(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := s.Seal([]byte("secret"), []byte("session-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("secret")) {
		t.Fatalf("sealed value leaks plaintext")
	}

	opened, err := s.Open(sealed, []byte("session-1"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != "secret" {
		t.Fatalf("got %q", opened)
	}

	if _, err := s.Open(sealed, []byte("session-2")); !errors.Is(err, ErrUnseal) {
		t.Fatalf("expected ErrUnseal for wrong associated data, got %v", err)
	}
	if _, err := s.Open(sealed[:5], nil); !errors.Is(err, ErrUnseal) {
		t.Fatalf("expected ErrUnseal for truncated value, got %v", err)
	}
}

func TestNewSealerRequiresLongSecret(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
