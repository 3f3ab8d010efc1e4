package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"example/comment-search-api/app/models"
)

const (
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	defaultLeeway = 30 * time.Second
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// IDTokenVerifier validates Google ID tokens against Google's JWKS.
type IDTokenVerifier struct {
	audience string
	keyfunc  keyfunc.Keyfunc
	parser   *jwt.Parser
}

// NewIDTokenVerifier builds a verifier for tokens issued to clientID. An
// empty jwksURL uses Google's published keys.
func NewIDTokenVerifier(clientID, jwksURL string) (*IDTokenVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("auth: google client id must be set")
	}
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithAudience(clientID),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
	)

	return &IDTokenVerifier{
		audience: clientID,
		keyfunc:  keyProvider,
		parser:   parser,
	}, nil
}

// VerifyIDToken parses and validates an ID token and returns the profile
// it asserts.
func (v *IDTokenVerifier) VerifyIDToken(raw string) (models.Profile, error) {
	token, err := v.parser.Parse(raw, v.keyfunc.Keyfunc)
	if err != nil {
		return models.Profile{}, err
	}
	if !token.Valid {
		return models.Profile{}, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Profile{}, errors.New("invalid token claims")
	}
	if iss := readString(mapClaims, "iss"); !googleIssuers[iss] {
		return models.Profile{}, fmt.Errorf("unexpected issuer %q", iss)
	}

	profile := models.Profile{
		Subject: readString(mapClaims, "sub"),
		Email:   readString(mapClaims, "email"),
		Name:    readString(mapClaims, "name"),
		Picture: readString(mapClaims, "picture"),
	}
	if profile.Subject == "" {
		return models.Profile{}, errors.New("token missing sub")
	}
	return profile, nil
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func readExpiry(claims jwt.MapClaims) time.Time {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
