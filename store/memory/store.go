// Package memory is an in-process account store for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"
)

var _ store.Accounts = (*Store)(nil)

// Store keeps accounts in a map plus a customer-id index that is updated
// under the same lock as the primary record.
type Store struct {
	mu         sync.RWMutex
	accounts   map[string]*models.Account
	byCustomer map[string]map[string]struct{}
	receipts   map[string]struct{}
	closed     bool
	now        func() time.Time
}

func New() *Store {
	return &Store{
		accounts:   make(map[string]*models.Account),
		byCustomer: make(map[string]map[string]struct{}),
		receipts:   make(map[string]struct{}),
		now:        time.Now,
	}
}

func (s *Store) Get(_ context.Context, id string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.Account{}, store.ErrClosed
	}
	acct, ok := s.accounts[id]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return *acct, nil
}

func (s *Store) RecordLogin(_ context.Context, p models.Profile) error {
	if p.Subject == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	now := s.now()
	acct := s.getOrCreate(p.Subject, now)
	acct.Email = p.Email
	acct.Name = p.Name
	acct.Picture = p.Picture
	acct.LastLogin = now
	acct.UpdatedAt = now
	return nil
}

func (s *Store) IncrementUsage(_ context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	now := s.now()
	acct := s.getOrCreate(id, now)
	acct.UsageCount++
	acct.UpdatedAt = now
	return nil
}

func (s *Store) IncrementUsageOnce(_ context.Context, id, requestID string) (bool, error) {
	if id == "" || requestID == "" {
		return false, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, store.ErrClosed
	}
	if _, seen := s.receipts[requestID]; seen {
		return false, nil
	}
	s.receipts[requestID] = struct{}{}
	now := s.now()
	acct := s.getOrCreate(id, now)
	acct.UsageCount++
	acct.UpdatedAt = now
	return true, nil
}

func (s *Store) MarkPro(_ context.Context, id, customerID string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	now := s.now()
	acct := s.getOrCreate(id, now)
	acct.IsPro = true
	acct.UpdatedAt = now
	if customerID != "" && acct.BillingCustomerID != customerID {
		if prev := acct.BillingCustomerID; prev != "" {
			delete(s.byCustomer[prev], id)
		}
		acct.BillingCustomerID = customerID
		ids, ok := s.byCustomer[customerID]
		if !ok {
			ids = make(map[string]struct{})
			s.byCustomer[customerID] = ids
		}
		ids[id] = struct{}{}
	}
	return nil
}

func (s *Store) RevokeProByCustomer(_ context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrClosed
	}
	now := s.now()
	matched := 0
	for id := range s.byCustomer[customerID] {
		acct, ok := s.accounts[id]
		if !ok {
			continue
		}
		acct.IsPro = false
		acct.UpdatedAt = now
		matched++
	}
	return matched, nil
}

func (s *Store) ResetUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	acct, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	acct.UsageCount = 0
	acct.UpdatedAt = s.now()
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Put seeds a record as-is. Intended for tests.
func (s *Store) Put(acct models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := acct
	s.accounts[acct.ID] = &cp
	if acct.BillingCustomerID != "" {
		ids, ok := s.byCustomer[acct.BillingCustomerID]
		if !ok {
			ids = make(map[string]struct{})
			s.byCustomer[acct.BillingCustomerID] = ids
		}
		ids[acct.ID] = struct{}{}
	}
}

// caller holds s.mu
func (s *Store) getOrCreate(id string, now time.Time) *models.Account {
	acct, ok := s.accounts[id]
	if !ok {
		acct = &models.Account{ID: id, CreatedAt: now, UpdatedAt: now}
		s.accounts[id] = acct
	}
	return acct
}
