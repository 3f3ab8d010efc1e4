package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	// DisableAuth injects a fixed local-dev identity. Only honored by
	// callers when running locally.
	DisableAuth bool
	Log         logrus.FieldLogger
}

const localDevSubject = "local-dev"

// Middleware enforces bearer token auth and injects claims into the request context.
func Middleware(verifier TokenVerifier, cfg MiddlewareConfig) gin.HandlerFunc {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return func(c *gin.Context) {
		if cfg.DisableAuth {
			ctx := WithClaims(c.Request.Context(), &Claims{Subject: localDevSubject})
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		if verifier == nil {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		entry := log.WithField("path", c.Request.URL.Path)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			entry.Info("auth failure: missing Authorization header")
			respondUnauthorized(c, "missing authorization header")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			entry.Info("auth failure: malformed Authorization header")
			respondUnauthorized(c, "invalid authorization header")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			entry.WithError(err).Info("auth failure: token invalid")
			respondUnauthorized(c, "invalid token")
			return
		}

		ctx := WithClaims(c.Request.Context(), claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// extractBearerToken accepts exactly "Bearer <token>".
func extractBearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
