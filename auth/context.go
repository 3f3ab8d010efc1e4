// Package auth resolves the caller's identity from session tokens and runs
// the Google sign-in handshake that issues them.
package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const claimsKey ctxKey = iota

// Claims contains the verified session token details we care about.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	Picture   string
	ExpiresAt time.Time
}

// WithClaims stores auth claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims from a context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// Subject returns the authenticated account id for a gin request, or ""
// when the middleware did not run.
func Subject(c *gin.Context) string {
	claims, ok := ClaimsFromContext(c.Request.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}
