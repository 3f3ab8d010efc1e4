// Package postgres stores accounts in a single Postgres table via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"

	_ "github.com/lib/pq"
)

var _ store.Accounts = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open connects with the given DSN and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return New(d), nil
}

func New(d *sql.DB) *Store {
	return &Store{db: d}
}

// Migrate creates the accounts table, the customer-id index and the
// usage receipts table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id                  TEXT PRIMARY KEY,
			email               TEXT,
			name                TEXT,
			picture             TEXT,
			usage_count         INT NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
			is_pro              BOOLEAN NOT NULL DEFAULT FALSE,
			stripe_customer_id  TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_login          TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS accounts_stripe_customer_id_idx
			ON accounts (stripe_customer_id);
		CREATE TABLE IF NOT EXISTS usage_receipts (
			request_id  TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Account, error) {
	var (
		acct                        models.Account
		email, name, picture, cusID sql.NullString
		lastLogin                   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, picture, usage_count, is_pro,
		       stripe_customer_id, created_at, updated_at, last_login
		FROM accounts
		WHERE id = $1;
	`, id).Scan(
		&acct.ID, &email, &name, &picture, &acct.UsageCount, &acct.IsPro,
		&cusID, &acct.CreatedAt, &acct.UpdatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, store.ErrNotFound
		}
		return models.Account{}, fmt.Errorf("postgres: get account: %w", err)
	}
	acct.Email = email.String
	acct.Name = name.String
	acct.Picture = picture.String
	acct.BillingCustomerID = cusID.String
	if lastLogin.Valid {
		acct.LastLogin = lastLogin.Time
	}
	return acct, nil
}

func (s *Store) RecordLogin(ctx context.Context, p models.Profile) error {
	if p.Subject == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, name, picture, usage_count, is_pro, last_login)
		VALUES ($1, $2, $3, $4, 0, FALSE, now())
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    picture = EXCLUDED.picture,
		    last_login = now(),
		    updated_at = now();
	`, p.Subject, nullIfEmpty(p.Email), nullIfEmpty(p.Name), nullIfEmpty(p.Picture))
	if err != nil {
		return fmt.Errorf("postgres: record login: %w", err)
	}
	return nil
}

func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, usage_count, is_pro)
		VALUES ($1, 1, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET usage_count = accounts.usage_count + 1,
		    updated_at = now();
	`, id)
	if err != nil {
		return fmt.Errorf("postgres: increment usage: %w", err)
	}
	return nil
}

// IncrementUsageOnce records requestID and bumps the counter in one
// transaction, so a redelivered request leaves usage_count unchanged.
func (s *Store) IncrementUsageOnce(ctx context.Context, id, requestID string) (bool, error) {
	if id == "" || requestID == "" {
		return false, store.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO usage_receipts (request_id, account_id)
		VALUES ($1, $2)
		ON CONFLICT (request_id) DO NOTHING;
	`, requestID, id)
	if err != nil {
		return false, fmt.Errorf("postgres: record usage receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: usage receipt rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, usage_count, is_pro)
		VALUES ($1, 1, FALSE)
		ON CONFLICT (id) DO UPDATE
		SET usage_count = accounts.usage_count + 1,
		    updated_at = now();
	`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: increment usage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("postgres: commit: %w", err)
	}
	return true, nil
}

func (s *Store) MarkPro(ctx context.Context, id, customerID string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, usage_count, is_pro, stripe_customer_id)
		VALUES ($1, 0, TRUE, $2)
		ON CONFLICT (id) DO UPDATE
		SET is_pro = TRUE,
		    stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, accounts.stripe_customer_id),
		    updated_at = now();
	`, id, nullIfEmpty(customerID))
	if err != nil {
		return fmt.Errorf("postgres: mark pro: %w", err)
	}
	return nil
}

func (s *Store) RevokeProByCustomer(ctx context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET is_pro = FALSE, updated_at = now()
		WHERE stripe_customer_id = $1;
	`, customerID)
	if err != nil {
		return 0, fmt.Errorf("postgres: revoke pro: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: revoke pro rows: %w", err)
	}
	return int(n), nil
}

func (s *Store) ResetUsage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET usage_count = 0, updated_at = $2
		WHERE id = $1;
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: reset usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: reset usage rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
