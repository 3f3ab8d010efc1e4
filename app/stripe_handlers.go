package app

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example/comment-search-api/auth"
	"example/comment-search-api/billing"
	"example/comment-search-api/store"
)

const maxWebhookBytes = int64(65536)

// CreateCheckoutSession starts a Stripe Checkout Session for the authenticated user.
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	if h.deps.Billing == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	url, err := h.deps.Billing.CreateCheckoutSession(c.Request.Context(), billing.CheckoutRequest{
		AccountID: claims.Subject,
		Email:     claims.Email,
	})
	if err != nil {
		requestLog(c, h.deps.Log).WithField("account_id", claims.Subject).WithError(err).Error("stripe checkout session failed")
		if errors.Is(err, billing.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortalSession creates a Stripe Customer Portal session for the authenticated user.
func (h *Handlers) CreatePortalSession(c *gin.Context) {
	if h.deps.Billing == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	sub := auth.Subject(c)
	log := requestLog(c, h.deps.Log).WithField("account_id", sub)

	acct, err := h.deps.Accounts.Get(c.Request.Context(), sub)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.WithError(err).Error("portal lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}
	if acct.BillingCustomerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripe customer missing for user"})
		return
	}

	url, err := h.deps.Billing.CreatePortalSession(c.Request.Context(), acct.BillingCustomerID, h.cfg.Server.FrontendURL+"/")
	if err != nil {
		log.WithError(err).Error("stripe portal session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook verifies a Stripe delivery and applies it to account state.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	log := requestLog(c, h.deps.Log)
	if h.deps.Webhooks == nil {
		log.Error("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		log.WithError(err).Warn("stripe webhook read failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	if int64(len(body)) > maxWebhookBytes {
		log.WithField("limit", maxWebhookBytes).Warn("stripe webhook body too large")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}

	event, err := h.deps.Webhooks.ConstructEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.WithError(err).Warn("stripe webhook rejected")
		if errors.Is(err, billing.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	if err := h.deps.Webhooks.Apply(c.Request.Context(), event); err != nil {
		if errors.Is(err, billing.ErrMalformedPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
