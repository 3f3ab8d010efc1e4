package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"example/comment-search-api/app/config"
)

var ErrNotConfigured = errors.New("billing: stripe not configured")

// CheckoutSessions and PortalSessions match the stripe-go client fields so
// tests can stub them.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type PortalSessions interface {
	New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type CheckoutRequest struct {
	AccountID string
	Email     string
}

type StripeProvider struct {
	checkout    CheckoutSessions
	portal      PortalSessions
	priceID     string
	mode        string
	trialDays   int64
	frontendURL string
}

// NewStripeProvider builds a provider over the stripe-go API client.
func NewStripeProvider(cfg config.StripeConfig, frontendURL string) *StripeProvider {
	sc := client.New(cfg.SecretKey, nil)
	return NewProvider(sc.CheckoutSessions, sc.BillingPortalSessions, cfg, frontendURL)
}

func NewProvider(checkout CheckoutSessions, portal PortalSessions, cfg config.StripeConfig, frontendURL string) *StripeProvider {
	return &StripeProvider{
		checkout:    checkout,
		portal:      portal,
		priceID:     cfg.PriceID,
		mode:        cfg.CheckoutMode,
		trialDays:   cfg.TrialDays,
		frontendURL: frontendURL,
	}
}

// CreateCheckoutSession returns the hosted checkout URL. The account id is
// carried in metadata so the completion webhook can find the account.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if p.priceID == "" || p.frontendURL == "" {
		return "", ErrNotConfigured
	}
	if req.AccountID == "" {
		return "", errors.New("billing: missing account id")
	}

	metadata := map[string]string{"user_id": req.AccountID}
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.AccountID),
		Metadata:          metadata,
		SuccessURL:        stripe.String(p.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(p.frontendURL + "/"),
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	switch p.mode {
	case string(stripe.CheckoutSessionModePayment):
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
	default:
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		sub := &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata}
		if p.trialDays > 0 {
			sub.TrialPeriodDays = stripe.Int64(p.trialDays)
		}
		params.SubscriptionData = sub
	}

	sess, err := p.checkout.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession returns a billing-portal URL for an existing customer.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if customerID == "" {
		return "", errors.New("billing: missing customer id")
	}
	if returnURL == "" {
		returnURL = p.frontendURL + "/"
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.portal.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create portal session: %w", err)
	}
	return sess.URL, nil
}
