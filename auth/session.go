package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example/comment-search-api/app/models"
)

var ErrUnauthenticated = errors.New("auth: unauthenticated")

// SessionTokens issues and verifies the HMAC-signed bearer tokens handed to
// the frontend after login.
type SessionTokens struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

func NewSessionTokens(secret, algorithm string, ttl time.Duration) (*SessionTokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: session secret must be set")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported session algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session ttl must be positive")
	}

	return &SessionTokens{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}, nil
}

// Issue mints a session token for a signed-in profile.
func (s *SessionTokens) Issue(p models.Profile) (string, error) {
	if p.Subject == "" {
		return "", errors.New("auth: profile missing subject")
	}
	now := s.now()
	token := jwt.NewWithClaims(s.method, jwt.MapClaims{
		"sub":     p.Subject,
		"email":   p.Email,
		"name":    p.Name,
		"picture": p.Picture,
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's claims.
// All failures wrap ErrUnauthenticated.
func (s *SessionTokens) Verify(tokenString string) (*Claims, error) {
	token, err := s.parser.Parse(tokenString, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Email:     readString(mapClaims, "email"),
		Name:      readString(mapClaims, "name"),
		Picture:   readString(mapClaims, "picture"),
		ExpiresAt: readExpiry(mapClaims),
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing sub", ErrUnauthenticated)
	}
	return claims, nil
}
