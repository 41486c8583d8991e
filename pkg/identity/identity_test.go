package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "slotbook/pkg/errors"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	s, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t)
	now := time.Now()

	token, err := s.Seal("user:42", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	userID, err := s.Open(token, now)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if userID != "user:42" {
		t.Errorf("Open() = %q, want %q", userID, "user:42")
	}
}

func TestSealer_Expired(t *testing.T) {
	s := newTestSealer(t)
	now := time.Now()

	token, err := s.Seal("alice", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := s.Open(token, now.Add(2*time.Minute)); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestSealer_RejectsForeignAndGarbage(t *testing.T) {
	s := newTestSealer(t)
	other := newTestSealer(t)
	now := time.Now()

	token, err := other.Seal("mallory", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	for _, tok := range []string{token, "", "not-base64!!", "AAAA"} {
		if _, err := s.Open(tok, now); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Open(%q) expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestSealer_EmptyUser(t *testing.T) {
	s := newTestSealer(t)
	if _, err := s.Seal("", time.Now().Add(time.Hour)); err == nil {
		t.Errorf("expected error for empty user id")
	}
}

func TestNewSealer_BadKey(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Errorf("expected error for malformed key")
	}
}

func TestRequireUser(t *testing.T) {
	if _, err := RequireUser(context.Background()); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected unauthorized without user, got %v", err)
	}
	if _, err := RequireUser(WithUser(context.Background(), "")); err == nil {
		t.Errorf("empty user id must not authenticate")
	}

	userID, err := RequireUser(WithUser(context.Background(), "bob"))
	if err != nil || userID != "bob" {
		t.Errorf("RequireUser() = %q, %v", userID, err)
	}
}
