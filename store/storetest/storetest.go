// Package storetest is a conformance suite run against every store.Accounts backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"
)

// Factory returns the store under test. Ids are unique per subtest so a
// shared database may be reused.
type Factory func(t *testing.T) store.Accounts

// Run exercises the store.Accounts contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), uniqueID(t, "missing"))
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get missing err = %v, want ErrNotFound", err)
		}
	})

	t.Run("login creates defaults", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "login")
		if err := s.RecordLogin(ctx, models.Profile{Subject: id, Email: "a@example.com", Name: "A"}); err != nil {
			t.Fatalf("RecordLogin error: %v", err)
		}
		acct, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if acct.UsageCount != 0 || acct.IsPro || acct.Email != "a@example.com" {
			t.Fatalf("unexpected account after first login: %+v", acct)
		}
	})

	t.Run("login keeps usage and pro flag", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "relogin")
		mustDo(t, s.RecordLogin(ctx, models.Profile{Subject: id, Email: "old@example.com"}))
		mustDo(t, s.IncrementUsage(ctx, id))
		mustDo(t, s.MarkPro(ctx, id, "cus_"+id))
		mustDo(t, s.RecordLogin(ctx, models.Profile{Subject: id, Email: "new@example.com", Name: "New"}))

		acct, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if acct.UsageCount != 1 || !acct.IsPro || acct.BillingCustomerID != "cus_"+id {
			t.Fatalf("login clobbered quota state: %+v", acct)
		}
		if acct.Email != "new@example.com" || acct.Name != "New" {
			t.Fatalf("login did not merge profile: %+v", acct)
		}
	})

	t.Run("login refreshes updated_at", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "touch")
		mustDo(t, s.RecordLogin(ctx, models.Profile{Subject: id, Name: "A"}))
		before, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}

		time.Sleep(20 * time.Millisecond)
		mustDo(t, s.RecordLogin(ctx, models.Profile{Subject: id, Name: "B"}))
		after, _ := s.Get(ctx, id)
		if !after.UpdatedAt.After(before.UpdatedAt) {
			t.Fatalf("updated_at not advanced: before=%v after=%v", before.UpdatedAt, after.UpdatedAt)
		}
		if !after.CreatedAt.Equal(before.CreatedAt) {
			t.Fatalf("created_at changed: before=%v after=%v", before.CreatedAt, after.CreatedAt)
		}
	})

	t.Run("increment once skips repeated request ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "once")
		req := "req-" + id

		applied, err := s.IncrementUsageOnce(ctx, id, req)
		if err != nil || !applied {
			t.Fatalf("first IncrementUsageOnce = (%v, %v), want (true, nil)", applied, err)
		}
		applied, err = s.IncrementUsageOnce(ctx, id, req)
		if err != nil || applied {
			t.Fatalf("repeat IncrementUsageOnce = (%v, %v), want (false, nil)", applied, err)
		}
		acct, _ := s.Get(ctx, id)
		if acct.UsageCount != 1 {
			t.Fatalf("usage = %d after a repeated request, want 1", acct.UsageCount)
		}

		applied, err = s.IncrementUsageOnce(ctx, id, req+"-2")
		if err != nil || !applied {
			t.Fatalf("new request IncrementUsageOnce = (%v, %v), want (true, nil)", applied, err)
		}
		acct, _ = s.Get(ctx, id)
		if acct.UsageCount != 2 {
			t.Fatalf("usage = %d, want 2", acct.UsageCount)
		}

		if _, err := s.IncrementUsageOnce(ctx, id, ""); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("empty request id err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("increment creates then adds", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "incr")
		mustDo(t, s.IncrementUsage(ctx, id))
		acct, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if acct.UsageCount != 1 || acct.IsPro {
			t.Fatalf("first increment = %+v, want usage 1 free", acct)
		}
		mustDo(t, s.IncrementUsage(ctx, id))
		acct, _ = s.Get(ctx, id)
		if acct.UsageCount != 2 {
			t.Fatalf("usage = %d, want 2", acct.UsageCount)
		}
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "concurrent")
		mustDo(t, s.RecordLogin(ctx, models.Profile{Subject: id}))

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.IncrementUsage(ctx, id)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("IncrementUsage error: %v", err)
			}
		}
		acct, _ := s.Get(ctx, id)
		if acct.UsageCount != n {
			t.Fatalf("usage = %d, want %d", acct.UsageCount, n)
		}
	})

	t.Run("mark pro is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "pro")
		mustDo(t, s.MarkPro(ctx, id, "cus_"+id))
		first, _ := s.Get(ctx, id)
		mustDo(t, s.MarkPro(ctx, id, "cus_"+id))
		second, _ := s.Get(ctx, id)
		if !second.IsPro || second.BillingCustomerID != first.BillingCustomerID || second.UsageCount != first.UsageCount {
			t.Fatalf("second MarkPro changed state: first=%+v second=%+v", first, second)
		}
	})

	t.Run("mark pro creates a full record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "pronew")
		mustDo(t, s.MarkPro(ctx, id, "cus_"+id))
		acct, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if !acct.IsPro || acct.UsageCount != 0 || acct.BillingCustomerID != "cus_"+id {
			t.Fatalf("unexpected account: %+v", acct)
		}
		if acct.CreatedAt.IsZero() || acct.UpdatedAt.IsZero() {
			t.Fatalf("timestamps missing: %+v", acct)
		}
	})

	t.Run("mark pro without customer keeps existing id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "keepcus")
		mustDo(t, s.MarkPro(ctx, id, "cus_"+id))
		mustDo(t, s.MarkPro(ctx, id, ""))
		acct, _ := s.Get(ctx, id)
		if acct.BillingCustomerID != "cus_"+id {
			t.Fatalf("customer id cleared: %+v", acct)
		}
	})

	t.Run("revoke by customer", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "revoke")
		customer := "cus_" + id
		mustDo(t, s.IncrementUsage(ctx, id))
		mustDo(t, s.MarkPro(ctx, id, customer))

		n, err := s.RevokeProByCustomer(ctx, customer)
		if err != nil || n != 1 {
			t.Fatalf("RevokeProByCustomer = (%d, %v), want (1, nil)", n, err)
		}
		acct, _ := s.Get(ctx, id)
		if acct.IsPro || acct.BillingCustomerID != customer || acct.UsageCount != 1 {
			t.Fatalf("unexpected account after revoke: %+v", acct)
		}

		n, err = s.RevokeProByCustomer(ctx, "cus_nobody_"+id)
		if err != nil || n != 0 {
			t.Fatalf("RevokeProByCustomer unknown = (%d, %v), want (0, nil)", n, err)
		}
	})

	t.Run("reset usage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := uniqueID(t, "reset")
		mustDo(t, s.IncrementUsage(ctx, id))
		mustDo(t, s.IncrementUsage(ctx, id))
		mustDo(t, s.ResetUsage(ctx, id))
		acct, _ := s.Get(ctx, id)
		if acct.UsageCount != 0 {
			t.Fatalf("usage after reset = %d", acct.UsageCount)
		}
		if err := s.ResetUsage(ctx, uniqueID(t, "reset-missing")); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("ResetUsage missing err = %v, want ErrNotFound", err)
		}
	})
}

func uniqueID(t *testing.T, name string) string {
	return fmt.Sprintf("test-%s-%d", name, time.Now().UnixNano())
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
