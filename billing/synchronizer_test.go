package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"

	"example/comment-search-api/app/models"
	"example/comment-search-api/logging"
	"example/comment-search-api/store/memory"
)

const testSecret = "whsec_test_secret"

type brokenAccounts struct {
	revokeCalls int
}

func (b *brokenAccounts) MarkPro(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func (b *brokenAccounts) RevokeProByCustomer(context.Context, string) (int, error) {
	b.revokeCalls++
	return 0, errors.New("store unavailable")
}

func signedEvent(t *testing.T, eventType, object string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_test","object":"event","api_version":"2024-06-20","type":%q,"data":{"object":%s}}`,
		eventType, object,
	))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func applySigned(t *testing.T, s *Synchronizer, eventType, object string) error {
	t.Helper()
	payload, header := signedEvent(t, eventType, object)
	event, err := s.ConstructEvent(payload, header)
	if err != nil {
		t.Fatalf("ConstructEvent error: %v", err)
	}
	return s.Apply(context.Background(), event)
}

func TestCheckoutCompletedMarksProIdempotently(t *testing.T) {
	st := memory.New()
	sync := NewSynchronizer(st, testSecret, logging.Discard())
	obj := `{"id":"cs_1","object":"checkout.session","customer":"cus_X","metadata":{"user_id":"u1"}}`

	for i := 0; i < 2; i++ {
		if err := applySigned(t, sync, "checkout.session.completed", obj); err != nil {
			t.Fatalf("delivery %d: Apply error: %v", i+1, err)
		}
	}

	acct, err := st.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !acct.IsPro || acct.BillingCustomerID != "cus_X" {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestCheckoutWithoutCustomerKeepsExistingID(t *testing.T) {
	st := memory.New()
	st.Put(models.Account{ID: "u1", BillingCustomerID: "cus_OLD"})
	sync := NewSynchronizer(st, testSecret, logging.Discard())

	obj := `{"id":"cs_2","object":"checkout.session","metadata":{"user_id":"u1"}}`
	if err := applySigned(t, sync, "checkout.session.completed", obj); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	acct, _ := st.Get(context.Background(), "u1")
	if !acct.IsPro || acct.BillingCustomerID != "cus_OLD" {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestCheckoutWithoutUserIDIsAcked(t *testing.T) {
	st := memory.New()
	sync := NewSynchronizer(st, testSecret, logging.Discard())

	obj := `{"id":"cs_3","object":"checkout.session","customer":"cus_Y","metadata":{}}`
	if err := applySigned(t, sync, "checkout.session.completed", obj); err != nil {
		t.Fatalf("Apply error: %v, want nil", err)
	}
	if n, _ := st.RevokeProByCustomer(context.Background(), "cus_Y"); n != 0 {
		t.Fatalf("no account should carry cus_Y, got %d", n)
	}
}

func TestCheckoutStoreFailureWithholdsAck(t *testing.T) {
	sync := NewSynchronizer(&brokenAccounts{}, testSecret, logging.Discard())
	obj := `{"id":"cs_4","object":"checkout.session","customer":"cus_Z","metadata":{"user_id":"u1"}}`
	if err := applySigned(t, sync, "checkout.session.completed", obj); err == nil {
		t.Fatal("expected error when the store rejects MarkPro")
	}
}

func TestSubscriptionDeletedRevokesPro(t *testing.T) {
	st := memory.New()
	st.Put(models.Account{ID: "u1", IsPro: true, BillingCustomerID: "cus_X"})
	sync := NewSynchronizer(st, testSecret, logging.Discard())

	obj := `{"id":"sub_1","object":"subscription","customer":"cus_X"}`
	if err := applySigned(t, sync, "customer.subscription.deleted", obj); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	acct, _ := st.Get(context.Background(), "u1")
	if acct.IsPro {
		t.Fatal("expected pro flag to be cleared")
	}
	if acct.BillingCustomerID != "cus_X" {
		t.Fatalf("customer id must be kept, got %q", acct.BillingCustomerID)
	}
}

func TestSubscriptionDeletedUnknownCustomerIsAcked(t *testing.T) {
	sync := NewSynchronizer(memory.New(), testSecret, logging.Discard())
	obj := `{"id":"sub_2","object":"subscription","customer":"cus_UNKNOWN"}`
	if err := applySigned(t, sync, "customer.subscription.deleted", obj); err != nil {
		t.Fatalf("Apply error: %v, want nil", err)
	}
}

func TestSubscriptionDeletedStoreFailureIsAcked(t *testing.T) {
	accounts := &brokenAccounts{}
	sync := NewSynchronizer(accounts, testSecret, logging.Discard())
	obj := `{"id":"sub_3","object":"subscription","customer":"cus_X"}`
	if err := applySigned(t, sync, "customer.subscription.deleted", obj); err != nil {
		t.Fatalf("Apply error: %v, want nil", err)
	}
	if accounts.revokeCalls != 1 {
		t.Fatalf("revoke calls = %d, want 1", accounts.revokeCalls)
	}
}

func TestOtherEventsAreIgnored(t *testing.T) {
	st := memory.New()
	sync := NewSynchronizer(st, testSecret, logging.Discard())

	if err := applySigned(t, sync, "invoice.payment_failed", `{"id":"in_1","object":"invoice","customer":"cus_X"}`); err != nil {
		t.Fatalf("invoice.payment_failed Apply error: %v", err)
	}
	if err := applySigned(t, sync, "customer.created", `{"id":"cus_1","object":"customer"}`); err != nil {
		t.Fatalf("customer.created Apply error: %v", err)
	}
}

func TestConstructEventRejectsBadSignature(t *testing.T) {
	st := memory.New()
	sync := NewSynchronizer(st, testSecret, logging.Discard())
	payload, _ := signedEvent(t, "checkout.session.completed",
		`{"id":"cs_5","object":"checkout.session","customer":"cus_X","metadata":{"user_id":"u1"}}`)

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_wrong",
		Timestamp: time.Now(),
	})

	cases := map[string]string{
		"wrong secret": forged.Header,
		"empty header": "",
		"garbage":      "not-a-signature",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := sync.ConstructEvent(payload, header); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("err = %v, want ErrInvalidSignature", err)
			}
		})
	}

	if _, err := st.Get(context.Background(), "u1"); err == nil {
		t.Fatal("rejected delivery must not create an account")
	}
}

func TestConstructEventRejectsMalformedPayload(t *testing.T) {
	sync := NewSynchronizer(memory.New(), testSecret, logging.Discard())
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte("{not json"),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	if _, err := sync.ConstructEvent(signed.Payload, signed.Header); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}
