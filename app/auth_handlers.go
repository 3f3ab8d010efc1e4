package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example/comment-search-api/auth"
)

const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 10 * 60
)

// Health is a public health check endpoint.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Login redirects the browser to Google with a fresh state cookie.
func (h *Handlers) Login(c *gin.Context) {
	if h.deps.Login == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login not configured"})
		return
	}
	state := auth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieTTL, "/auth", "", !h.cfg.IsLocal(), true)
	c.Redirect(http.StatusFound, h.deps.Login.AuthURL(state))
}

// Callback finishes the Google handshake, records the login and hands a
// session token to the frontend.
func (h *Handlers) Callback(c *gin.Context) {
	log := requestLog(c, h.deps.Log)
	failed := withQuery(h.cfg.Server.FrontendURL+"/", "error", "auth_failed")

	if h.deps.Login == nil || h.deps.Sessions == nil {
		log.Error("callback reached without login or session config")
		c.Redirect(http.StatusFound, failed)
		return
	}

	expected, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/auth", "", !h.cfg.IsLocal(), true)
	if errParam := c.Query("error"); errParam != "" {
		log.WithField("provider_error", errParam).Info("login cancelled at provider")
		c.Redirect(http.StatusFound, failed)
		return
	}
	if expected == "" || c.Query("state") != expected {
		log.Warn("oauth state mismatch")
		c.Redirect(http.StatusFound, failed)
		return
	}

	profile, err := h.deps.Login.Complete(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.WithError(err).Warn("login failed")
		c.Redirect(http.StatusFound, failed)
		return
	}
	log = log.WithField("account_id", profile.Subject)

	// Login proceeds even if the profile cannot be saved.
	if err := h.deps.Accounts.RecordLogin(c.Request.Context(), profile); err != nil {
		log.WithError(err).Error("record login failed")
	}

	token, err := h.deps.Sessions.Issue(profile)
	if err != nil {
		log.WithError(err).Error("issue session token failed")
		c.Redirect(http.StatusFound, failed)
		return
	}

	log.Info("login succeeded")
	c.Redirect(http.StatusFound, withQuery(h.cfg.Server.FrontendURL+"/auth/success", "token", token))
}

// UserStatus returns the caller's plan and remaining free usage.
func (h *Handlers) UserStatus(c *gin.Context) {
	sub := auth.Subject(c)
	status, err := h.deps.Ledger.Status(c.Request.Context(), sub)
	if err != nil {
		requestLog(c, h.deps.Log).WithFields(logrus.Fields{"account_id": sub}).WithError(err).Error("load usage status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, status)
}
