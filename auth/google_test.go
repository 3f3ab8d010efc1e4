package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"example/comment-search-api/app/models"
)

const testClientID = "client-123.apps.googleusercontent.com"

func newTestIDVerifier(t *testing.T) (*IDTokenVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	jwks := newJWKS(key, "test-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	verifier, err := NewIDTokenVerifier(testClientID, server.URL)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return verifier, key
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, issuer, audience string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":     issuer,
		"aud":     audience,
		"sub":     "google-sub-1",
		"email":   "g@example.com",
		"name":    "G User",
		"picture": "https://lh3.test/p.png",
		"exp":     now.Add(10 * time.Minute).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	tokenString, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

type jwksPayload struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKS(key *rsa.PrivateKey, kid string) jwksPayload {
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	return jwksPayload{
		Keys: []jwk{{Kty: "RSA", Kid: kid, Use: "sig", Alg: "RS256", N: n, E: e}},
	}
}

func TestVerifyIDToken(t *testing.T) {
	verifier, key := newTestIDVerifier(t)

	for _, iss := range []string{"accounts.google.com", "https://accounts.google.com"} {
		profile, err := verifier.VerifyIDToken(signIDToken(t, key, iss, testClientID))
		if err != nil {
			t.Fatalf("issuer %s: VerifyIDToken error: %v", iss, err)
		}
		if profile.Subject != "google-sub-1" || profile.Email != "g@example.com" || profile.Name != "G User" {
			t.Fatalf("unexpected profile: %+v", profile)
		}
	}
}

func TestVerifyIDTokenRejects(t *testing.T) {
	verifier, key := newTestIDVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	cases := map[string]string{
		"wrong issuer":   signIDToken(t, key, "https://evil.test", testClientID),
		"wrong audience": signIDToken(t, key, "accounts.google.com", "someone-else"),
		"wrong key":      signIDToken(t, otherKey, "accounts.google.com", testClientID),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.VerifyIDToken(token); err == nil {
				t.Fatal("expected verification error")
			}
		})
	}
}

type fakeExchanger struct {
	token *oauth2.Token
	err   error
}

func (f *fakeExchanger) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.google.test/auth?state=" + state
}

func (f *fakeExchanger) Exchange(context.Context, string, ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return f.token, f.err
}

type fakeIDs struct{}

func (fakeIDs) VerifyIDToken(raw string) (models.Profile, error) {
	if raw != "good-id-token" {
		return models.Profile{}, errors.New("bad token")
	}
	return models.Profile{Subject: "sub-1", Email: "a@example.com"}, nil
}

func TestGoogleLoginComplete(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]any{"id_token": "good-id-token"})
	login := NewGoogleLogin(&fakeExchanger{token: tok}, fakeIDs{})

	profile, err := login.Complete(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if profile.Subject != "sub-1" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestGoogleLoginCompleteFailures(t *testing.T) {
	cases := map[string]*GoogleLogin{
		"exchange error": NewGoogleLogin(&fakeExchanger{err: errors.New("invalid_grant")}, fakeIDs{}),
		"no id token":    NewGoogleLogin(&fakeExchanger{token: &oauth2.Token{AccessToken: "at"}}, fakeIDs{}),
		"bad id token": NewGoogleLogin(&fakeExchanger{
			token: (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]any{"id_token": "forged"}),
		}, fakeIDs{}),
	}
	for name, login := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := login.Complete(context.Background(), "code-1"); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := NewGoogleLogin(&fakeExchanger{}, fakeIDs{}).Complete(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestAuthURLCarriesState(t *testing.T) {
	state := NewState()
	if state == "" || state == NewState() {
		t.Fatal("states must be non-empty and unique")
	}
	login := NewGoogleLogin(&fakeExchanger{}, fakeIDs{})
	if !strings.Contains(login.AuthURL(state), state) {
		t.Fatal("auth url should carry the state")
	}
}

func TestGoogleOAuthConfig(t *testing.T) {
	cfg := NewGoogleOAuthConfig("id", "secret", "https://api.test/auth/callback")
	if cfg.RedirectURL != "https://api.test/auth/callback" || len(cfg.Scopes) != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !strings.Contains(cfg.Endpoint.AuthURL, "accounts.google.com") {
		t.Fatalf("unexpected endpoint: %s", cfg.Endpoint.AuthURL)
	}
}
