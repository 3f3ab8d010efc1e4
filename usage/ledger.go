// Package usage enforces the free-tier request quota.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"
)

// FreeUsageLimit is how many quota-consuming requests a free account may make.
const FreeUsageLimit = 4

var (
	ErrQuotaExceeded = errors.New("usage: free quota exceeded")
	ErrStorage       = errors.New("usage: storage unavailable")
)

// QuotaError is returned when a free account has used up its allowance.
type QuotaError struct {
	Limit int
	Used  int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("free quota exceeded: %d of %d used", e.Used, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Recorder accepts increments to apply later. Record must not block.
type Recorder interface {
	Record(accountID string)
}

// Reader is the slice of store.Accounts the ledger reads from.
type Reader interface {
	Get(ctx context.Context, id string) (models.Account, error)
}

type Ledger struct {
	accounts Reader
	recorder Recorder
	limit    int
	log      logrus.FieldLogger
}

func NewLedger(accounts Reader, recorder Recorder, log logrus.FieldLogger) *Ledger {
	return &Ledger{
		accounts: accounts,
		recorder: recorder,
		limit:    FreeUsageLimit,
		log:      log,
	}
}

// CheckAndReserve admits one quota-consuming request for accountID and
// schedules its increment. The returned account is the state read before
// the increment. Two concurrent calls may both pass the check before either
// increment lands; the limit is soft by that margin.
func (l *Ledger) CheckAndReserve(ctx context.Context, accountID string) (models.Account, error) {
	acct, err := l.read(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}

	if !acct.IsPro && acct.UsageCount >= l.limit {
		l.log.WithFields(logrus.Fields{
			"account_id":  accountID,
			"usage_count": acct.UsageCount,
		}).Info("quota exceeded")
		return acct, &QuotaError{Limit: l.limit, Used: acct.UsageCount}
	}

	l.recorder.Record(accountID)
	return acct, nil
}

// Status reports usage for the status endpoint without consuming quota.
func (l *Ledger) Status(ctx context.Context, accountID string) (models.UsageStatus, error) {
	acct, err := l.read(ctx, accountID)
	if err != nil {
		return models.UsageStatus{}, err
	}

	status := models.UsageStatus{
		IsPro:      acct.IsPro,
		Plan:       acct.Plan(),
		UsageCount: acct.UsageCount,
	}
	if !acct.IsPro {
		limit := l.limit
		remaining := max(limit-acct.UsageCount, 0)
		status.Limit = &limit
		status.Remaining = &remaining
	}
	return status, nil
}

// read treats a missing record as a fresh free account.
func (l *Ledger) read(ctx context.Context, accountID string) (models.Account, error) {
	acct, err := l.accounts.Get(ctx, accountID)
	switch {
	case err == nil:
		return acct, nil
	case errors.Is(err, store.ErrNotFound):
		return models.Account{ID: accountID}, nil
	default:
		return models.Account{}, fmt.Errorf("%w: read account %s: %w", ErrStorage, accountID, err)
	}
}
