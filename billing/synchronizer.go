// Package billing keeps the pro flag in step with Stripe subscription
// events and opens checkout and portal sessions.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")
)

// Accounts is the part of store.Accounts the synchronizer writes to.
type Accounts interface {
	MarkPro(ctx context.Context, id, customerID string) error
	RevokeProByCustomer(ctx context.Context, customerID string) (int, error)
}

// Synchronizer applies verified Stripe events to account records. Every
// handled event is idempotent, so redeliveries are safe.
type Synchronizer struct {
	accounts Accounts
	secret   string
	log      logrus.FieldLogger
}

func NewSynchronizer(accounts Accounts, webhookSecret string, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{accounts: accounts, secret: webhookSecret, log: log}
}

// ConstructEvent verifies the Stripe-Signature header against payload.
func (s *Synchronizer) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		s.secret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		if isSignatureError(err) {
			return stripe.Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return stripe.Event{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if event.Data == nil {
		return stripe.Event{}, fmt.Errorf("%w: missing data object", ErrMalformedPayload)
	}
	return event, nil
}

// Apply handles one verified event. A non-nil error means the delivery
// should not be acknowledged.
func (s *Synchronizer) Apply(ctx context.Context, event stripe.Event) error {
	log := s.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: checkout session: %w", ErrMalformedPayload, err)
		}
		return s.checkoutCompleted(ctx, log, &sess)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: subscription: %w", ErrMalformedPayload, err)
		}
		s.subscriptionDeleted(ctx, log, customerID(sub.Customer))
		return nil

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: invoice: %w", ErrMalformedPayload, err)
		}
		log.WithFields(logrus.Fields{
			"invoice_id":  inv.ID,
			"customer_id": customerID(inv.Customer),
		}).Warn("invoice payment failed")
		return nil

	default:
		log.Debug("ignoring unhandled stripe event")
		return nil
	}
}

func (s *Synchronizer) checkoutCompleted(ctx context.Context, log logrus.FieldLogger, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata["user_id"]
	if userID == "" {
		userID = sess.ClientReferenceID
	}
	custID := customerID(sess.Customer)
	log = log.WithFields(logrus.Fields{
		"account_id":  userID,
		"customer_id": custID,
		"session_id":  sess.ID,
	})

	if userID == "" {
		log.Warn("checkout completed without user_id metadata")
		return nil
	}

	if err := s.accounts.MarkPro(ctx, userID, custID); err != nil {
		log.WithError(err).Error("mark pro failed")
		return fmt.Errorf("mark %s pro: %w", userID, err)
	}
	log.Info("account upgraded to pro")
	return nil
}

func (s *Synchronizer) subscriptionDeleted(ctx context.Context, log logrus.FieldLogger, custID string) {
	log = log.WithField("customer_id", custID)
	if custID == "" {
		log.Warn("subscription deleted without customer id")
		return
	}

	n, err := s.accounts.RevokeProByCustomer(ctx, custID)
	if err != nil {
		log.WithError(err).Error("revoke pro failed")
		return
	}
	if n == 0 {
		log.Warn("subscription deleted for unknown customer")
		return
	}
	log.WithField("accounts", n).Info("pro access revoked")
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
