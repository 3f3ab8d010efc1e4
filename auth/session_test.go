package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example/comment-search-api/app/models"
)

const testSecret = "test-session-secret"

func newTestSessionTokens(t *testing.T) *SessionTokens {
	t.Helper()
	s, err := NewSessionTokens(testSecret, "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokens error: %v", err)
	}
	return s
}

func TestSessionTokensRoundTrip(t *testing.T) {
	s := newTestSessionTokens(t)
	token, err := s.Issue(models.Profile{Subject: "sub-1", Email: "a@example.com", Name: "A", Picture: "https://img"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != "sub-1" || claims.Email != "a@example.com" || claims.Name != "A" || claims.Picture != "https://img" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Before(time.Now()) {
		t.Fatalf("expiry in the past: %v", claims.ExpiresAt)
	}
}

func TestSessionTokensRejects(t *testing.T) {
	s := newTestSessionTokens(t)

	sign := func(method jwt.SigningMethod, claims jwt.MapClaims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"missing sub":       sign(jwt.SigningMethodHS256, jwt.MapClaims{"exp": future}),
		"missing exp":       sign(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}),
		"expired":           sign(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Minute).Unix()}),
		"other hmac method": sign(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x", "exp": future}),
		"not a jwt":         "abc",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Verify(token); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestNewSessionTokensValidation(t *testing.T) {
	if _, err := NewSessionTokens("", "HS256", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewSessionTokens("s", "RS256", time.Hour); err == nil {
		t.Fatal("expected error for non-HMAC algorithm")
	}
	if _, err := NewSessionTokens("s", "HS384", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if _, err := NewSessionTokens("s", "HS512", time.Minute); err != nil {
		t.Fatalf("HS512 should be accepted: %v", err)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	if _, err := newTestSessionTokens(t).Issue(models.Profile{}); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
