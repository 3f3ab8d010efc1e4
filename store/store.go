// Package store defines the account document store shared by the usage
// ledger, the billing synchronizer and the login flow.
package store

import (
	"context"
	"errors"

	"example/comment-search-api/app/models"
)

var (
	ErrNotFound     = errors.New("store: account not found")
	ErrInvalidInput = errors.New("store: invalid input")
	ErrClosed       = errors.New("store: closed")
)

// Accounts is a mapping from account id to account record.
//
// Only MarkPro and RevokeProByCustomer may change IsPro. Implementations
// must make IncrementUsage atomic against concurrent increments.
type Accounts interface {
	// Get returns ErrNotFound when no record exists.
	Get(ctx context.Context, id string) (models.Account, error)

	// RecordLogin creates the record with zero usage and is_pro=false, or
	// merges profile fields, last_login and updated_at into an existing one.
	RecordLogin(ctx context.Context, p models.Profile) error

	// IncrementUsage adds one to usage_count, creating the record with
	// usage_count=1 when it does not exist.
	IncrementUsage(ctx context.Context, id string) error

	// IncrementUsageOnce is IncrementUsage keyed by requestID: a repeated
	// requestID is a no-op. applied reports whether this call counted.
	IncrementUsageOnce(ctx context.Context, id, requestID string) (applied bool, err error)

	// MarkPro merge-writes is_pro=true and, when customerID is non-empty,
	// the billing customer id. Creates the record when absent.
	MarkPro(ctx context.Context, id, customerID string) error

	// RevokeProByCustomer sets is_pro=false on every account whose billing
	// customer id matches and returns how many matched.
	RevokeProByCustomer(ctx context.Context, customerID string) (int, error)

	// ResetUsage sets usage_count back to zero. Used by operators only.
	ResetUsage(ctx context.Context, id string) error

	Close() error
}
