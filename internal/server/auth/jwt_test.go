package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/wilvurson/ai-chat/internal/common"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	p := NewProvider([]byte("super-secret"), "v1", time.Hour)

	tok, err := p.Issue("user-123", "a@example.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	got, err := p.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got.UserID != "user-123" {
		t.Fatalf("userID mismatch: got %q", got.UserID)
	}
	if got.Email != "a@example.com" {
		t.Fatalf("email mismatch: got %q", got.Email)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	p := NewProvider([]byte("secret"), "v1", -1*time.Second)

	tok, err := p.Issue("u1", "a@example.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = p.Verify(tok)
	if !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewProvider([]byte("right-secret"), "v1", time.Hour)
	verifier := NewProvider([]byte("wrong-secret"), "v1", time.Hour)

	tok, err := issuer.Issue("u2", "b@example.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = verifier.Verify(tok)
	if !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for forged token, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	p := NewProvider([]byte("k"), "v1", time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "garbage"} {
		if _, err := p.Verify(tok); !errors.Is(err, common.ErrUnauthenticated) {
			t.Fatalf("token %q: expected ErrUnauthenticated, got %v", tok, err)
		}
	}
}
