package app

import (
	"context"
	"testing"

	"example/comment-search-api/app/config"
	"example/comment-search-api/logging"
)

func memoryConfig() *config.Config {
	cfg := testConfig()
	cfg.Store.Driver = "memory"
	cfg.Usage.Workers = 2
	return cfg
}

func TestContainerInitOnce(t *testing.T) {
	c := NewContainer(memoryConfig(), logging.Discard())
	t.Cleanup(func() { _ = c.Close() })

	first, err := c.Init(context.Background())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	second, err := c.Init(context.Background())
	if err != nil {
		t.Fatalf("second Init error: %v", err)
	}
	if first != second {
		t.Fatal("Init must return the same dependencies on every call")
	}
	if first.Accounts == nil || first.Ledger == nil {
		t.Fatalf("core dependencies missing: %+v", first)
	}
	if first.Billing != nil || first.Comments != nil || first.Search != nil || first.Login != nil || first.Webhooks != nil {
		t.Fatal("unconfigured collaborators should stay nil")
	}
}

func TestContainerRecordsUsageThroughWorker(t *testing.T) {
	c := NewContainer(memoryConfig(), logging.Discard())
	deps, err := c.Init(context.Background())
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}

	if _, err := deps.Ledger.CheckAndReserve(context.Background(), "u1"); err != nil {
		t.Fatalf("CheckAndReserve error: %v", err)
	}
	c.worker.Stop()

	acct, err := deps.Accounts.Get(context.Background(), "u1")
	if err != nil || acct.UsageCount != 1 {
		t.Fatalf("account = %+v, %v", acct, err)
	}
	_ = c.Close()
}

func TestContainerInitErrors(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Store.Driver = "sqlite"
		if _, err := NewContainer(cfg, logging.Discard()).Init(context.Background()); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})

	t.Run("secret required outside local", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Server.Env = "production"
		c := NewContainer(cfg, logging.Discard())
		t.Cleanup(func() { _ = c.Close() })
		if _, err := c.Init(context.Background()); err == nil {
			t.Fatal("expected error when SECRET_KEY is missing in production")
		}
	})

	t.Run("firestore needs project", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Store.Driver = "firestore"
		if _, err := OpenAccounts(context.Background(), cfg.Store); err == nil {
			t.Fatal("expected error without FIRESTORE_PROJECT_ID")
		}
	})
}
