// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"example/comment-search-api/app/config"
	"example/comment-search-api/auth"
)

// Handlers serves the HTTP API over injected dependencies.
type Handlers struct {
	deps *Deps
	cfg  *config.Config
}

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter(cfg *config.Config, deps *Deps) *gin.Engine {
	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	corsCfg := cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"*"}
	} else {
		corsCfg.AllowCredentials = true
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(deps.Log))
	router.Use(cors.New(corsCfg))

	h := &Handlers{deps: deps, cfg: cfg}

	router.GET("/health", h.Health)
	router.GET("/auth/login", h.Login)
	router.GET("/auth/callback", h.Callback)
	router.POST("/api/search-comments", h.SearchComments)
	router.POST("/api/webhook", h.StripeWebhook)

	var verifier auth.TokenVerifier
	if deps.Sessions != nil {
		verifier = deps.Sessions
	}

	protected := router.Group("/api")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		DisableAuth: cfg.Auth.Disabled && cfg.IsLocal(),
		Log:         deps.Log,
	}))
	protected.GET("/comments", h.GetComments)
	protected.GET("/user/status", h.UserStatus)
	protected.POST("/create-checkout-session", h.CreateCheckoutSession)
	protected.POST("/billing/portal-session", h.CreatePortalSession)

	return router
}
