package identity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	user := &User{ID: "user-1", Email: "a@x.com", Role: RoleEmployee}

	token, exp, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "a@x.com" || claims.Role != RoleEmployee {
		t.Fatalf("claims not preserved: %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a")
	b, _ := NewTokenIssuer("secret-b")

	token, _, err := a.Issue(&User{ID: "user-1", Email: "a@x.com", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret")
	token, _, err := issuer.Issue(&User{ID: "user-1", Email: "a@x.com", Role: RoleGuest})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := issuer.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	current := time.Now().UTC()
	clock := func() time.Time { return current }
	issuer, err := NewTokenIssuer("test-secret", WithTokenTTL(time.Hour), WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, _, err := issuer.Issue(&User{ID: "user-1", Email: "a@x.com", Role: RoleEmployee})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(token); err != nil {
		t.Fatalf("token should still verify: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}
