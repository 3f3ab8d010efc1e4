package billing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v79"

	"example/comment-search-api/app/config"
)

type fakeCheckout struct {
	got *stripe.CheckoutSessionParams
	err error
}

func (f *fakeCheckout) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{URL: "https://checkout.stripe.test/cs_1"}, nil
}

type fakePortal struct {
	got *stripe.BillingPortalSessionParams
}

func (f *fakePortal) New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	f.got = params
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.test/p_1"}, nil
}

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		PriceID:      "price_123",
		CheckoutMode: "subscription",
		TrialDays:    30,
	}
}

func TestCreateCheckoutSessionSubscription(t *testing.T) {
	co := &fakeCheckout{}
	p := NewProvider(co, &fakePortal{}, testStripeConfig(), "https://app.test")

	url, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("CreateCheckoutSession error: %v", err)
	}
	if url != "https://checkout.stripe.test/cs_1" {
		t.Fatalf("url = %q", url)
	}

	got := co.got
	if stripe.StringValue(got.Mode) != "subscription" {
		t.Fatalf("mode = %q", stripe.StringValue(got.Mode))
	}
	if got.Metadata["user_id"] != "u1" || stripe.StringValue(got.ClientReferenceID) != "u1" {
		t.Fatalf("account id not carried: metadata=%v ref=%q", got.Metadata, stripe.StringValue(got.ClientReferenceID))
	}
	if got.SubscriptionData == nil || stripe.Int64Value(got.SubscriptionData.TrialPeriodDays) != 30 {
		t.Fatalf("expected 30 day trial, got %+v", got.SubscriptionData)
	}
	if !strings.HasPrefix(stripe.StringValue(got.SuccessURL), "https://app.test/success?session_id=") {
		t.Fatalf("success url = %q", stripe.StringValue(got.SuccessURL))
	}
	if stripe.StringValue(got.CancelURL) != "https://app.test/" {
		t.Fatalf("cancel url = %q", stripe.StringValue(got.CancelURL))
	}
	if len(got.LineItems) != 1 || stripe.StringValue(got.LineItems[0].Price) != "price_123" {
		t.Fatalf("line items = %+v", got.LineItems)
	}
}

func TestCreateCheckoutSessionPaymentMode(t *testing.T) {
	cfg := testStripeConfig()
	cfg.CheckoutMode = "payment"
	co := &fakeCheckout{}
	p := NewProvider(co, &fakePortal{}, cfg, "https://app.test")

	if _, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: "u1"}); err != nil {
		t.Fatalf("CreateCheckoutSession error: %v", err)
	}
	if stripe.StringValue(co.got.Mode) != "payment" || co.got.SubscriptionData != nil {
		t.Fatalf("unexpected payment params: mode=%q sub=%+v", stripe.StringValue(co.got.Mode), co.got.SubscriptionData)
	}
	if co.got.CustomerEmail != nil {
		t.Fatal("customer email should be unset when not provided")
	}
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		p := NewProvider(&fakeCheckout{}, &fakePortal{}, config.StripeConfig{}, "https://app.test")
		if _, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: "u1"}); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("err = %v, want ErrNotConfigured", err)
		}
	})
	t.Run("stripe failure", func(t *testing.T) {
		p := NewProvider(&fakeCheckout{err: errors.New("card_declined")}, &fakePortal{}, testStripeConfig(), "https://app.test")
		if _, err := p.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: "u1"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestCreatePortalSession(t *testing.T) {
	portal := &fakePortal{}
	p := NewProvider(&fakeCheckout{}, portal, testStripeConfig(), "https://app.test")

	url, err := p.CreatePortalSession(context.Background(), "cus_X", "")
	if err != nil {
		t.Fatalf("CreatePortalSession error: %v", err)
	}
	if url != "https://billing.stripe.test/p_1" {
		t.Fatalf("url = %q", url)
	}
	if stripe.StringValue(portal.got.Customer) != "cus_X" || stripe.StringValue(portal.got.ReturnURL) != "https://app.test/" {
		t.Fatalf("unexpected params: %+v", portal.got)
	}

	if _, err := p.CreatePortalSession(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for missing customer")
	}
}
