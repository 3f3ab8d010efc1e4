// Package firestore keeps one flat document per account in a Firestore
// collection, keyed by the identity subject.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"
)

var _ store.Accounts = (*Store)(nil)

const (
	fieldUsage    = "usage_count"
	fieldPro      = "is_pro"
	fieldCustomer = "stripe_customer_id"
	fieldCreated  = "created_at"
	fieldUpdated  = "updated_at"
	fieldLogin    = "last_login"
)

// Increments on a single document contend under bursts.
const incrementAttempts = 25

type accountDoc struct {
	Email            string    `firestore:"email,omitempty"`
	Name             string    `firestore:"name,omitempty"`
	Picture          string    `firestore:"picture,omitempty"`
	UsageCount       int       `firestore:"usage_count"`
	IsPro            bool      `firestore:"is_pro"`
	StripeCustomerID string    `firestore:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `firestore:"created_at,omitempty"`
	UpdatedAt        time.Time `firestore:"updated_at,omitempty"`
	LastLogin        time.Time `firestore:"last_login,omitempty"`
}

type Store struct {
	client   *firestore.Client
	col      *firestore.CollectionRef
	receipts *firestore.CollectionRef
}

// Open initializes a firebase app for projectID and returns a store over
// collection. credentialsFile may be empty to use ambient credentials or
// the emulator.
func Open(ctx context.Context, projectID, credentialsFile, collection string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return New(client, collection), nil
}

func New(client *firestore.Client, collection string) *Store {
	return &Store{
		client:   client,
		col:      client.Collection(collection),
		receipts: client.Collection(collection + "_usage_receipts"),
	}
}

func (s *Store) Get(ctx context.Context, id string) (models.Account, error) {
	if id == "" {
		return models.Account{}, store.ErrInvalidInput
	}
	snap, err := s.col.Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return models.Account{}, store.ErrNotFound
		}
		return models.Account{}, fmt.Errorf("firestore: get account: %w", err)
	}
	return decode(snap)
}

func (s *Store) RecordLogin(ctx context.Context, p models.Profile) error {
	if p.Subject == "" {
		return store.ErrInvalidInput
	}
	ref := s.col.Doc(p.Subject)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		exists, err := docExists(tx, ref)
		if err != nil {
			return err
		}
		if !exists {
			return tx.Create(ref, map[string]any{
				"email":      p.Email,
				"name":       p.Name,
				"picture":    p.Picture,
				fieldUsage:   0,
				fieldPro:     false,
				fieldCreated: firestore.ServerTimestamp,
				fieldUpdated: firestore.ServerTimestamp,
				fieldLogin:   firestore.ServerTimestamp,
			})
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "email", Value: p.Email},
			{Path: "name", Value: p.Name},
			{Path: "picture", Value: p.Picture},
			{Path: fieldLogin, Value: firestore.ServerTimestamp},
			{Path: fieldUpdated, Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return fmt.Errorf("firestore: record login: %w", err)
	}
	return nil
}

func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	ref := s.col.Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return increment(tx, ref)
	}, firestore.MaxAttempts(incrementAttempts))
	if err != nil {
		return fmt.Errorf("firestore: increment usage: %w", err)
	}
	return nil
}

// IncrementUsageOnce writes a receipt document for requestID in the same
// transaction as the increment.
func (s *Store) IncrementUsageOnce(ctx context.Context, id, requestID string) (bool, error) {
	if id == "" || requestID == "" {
		return false, store.ErrInvalidInput
	}
	ref := s.col.Doc(id)
	receipt := s.receipts.Doc(requestID)

	var applied bool
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		seen, err := docExists(tx, receipt)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		if err := increment(tx, ref); err != nil {
			return err
		}
		applied = true
		return tx.Create(receipt, map[string]any{
			"account_id": id,
			"applied_at": firestore.ServerTimestamp,
		})
	}, firestore.MaxAttempts(incrementAttempts))
	if err != nil {
		return false, fmt.Errorf("firestore: increment usage once: %w", err)
	}
	return applied, nil
}

func (s *Store) MarkPro(ctx context.Context, id, customerID string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	ref := s.col.Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		exists, err := docExists(tx, ref)
		if err != nil {
			return err
		}
		if !exists {
			data := map[string]any{
				fieldUsage:   0,
				fieldPro:     true,
				fieldCreated: firestore.ServerTimestamp,
				fieldUpdated: firestore.ServerTimestamp,
			}
			if customerID != "" {
				data[fieldCustomer] = customerID
			}
			return tx.Create(ref, data)
		}
		updates := []firestore.Update{
			{Path: fieldPro, Value: true},
			{Path: fieldUpdated, Value: firestore.ServerTimestamp},
		}
		if customerID != "" {
			updates = append(updates, firestore.Update{Path: fieldCustomer, Value: customerID})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return fmt.Errorf("firestore: mark pro: %w", err)
	}
	return nil
}

func (s *Store) RevokeProByCustomer(ctx context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, store.ErrInvalidInput
	}
	iter := s.col.Where(fieldCustomer, "==", customerID).Documents(ctx)
	defer iter.Stop()

	n := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return n, fmt.Errorf("firestore: query customer %s: %w", customerID, err)
		}
		_, err = snap.Ref.Update(ctx, []firestore.Update{
			{Path: fieldPro, Value: false},
			{Path: fieldUpdated, Value: firestore.ServerTimestamp},
		})
		if err != nil {
			return n, fmt.Errorf("firestore: revoke %s: %w", snap.Ref.ID, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) ResetUsage(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	_, err := s.col.Doc(id).Update(ctx, []firestore.Update{
		{Path: fieldUsage, Value: 0},
		{Path: fieldUpdated, Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if isNotFound(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("firestore: reset usage: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// increment reads before it writes, so callers must finish their own
// reads first.
func increment(tx *firestore.Transaction, ref *firestore.DocumentRef) error {
	exists, err := docExists(tx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return tx.Create(ref, map[string]any{
			fieldUsage:   1,
			fieldPro:     false,
			fieldCreated: firestore.ServerTimestamp,
			fieldUpdated: firestore.ServerTimestamp,
		})
	}
	return tx.Update(ref, []firestore.Update{
		{Path: fieldUsage, Value: firestore.Increment(1)},
		{Path: fieldUpdated, Value: firestore.ServerTimestamp},
	})
}

func docExists(tx *firestore.Transaction, ref *firestore.DocumentRef) (bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return snap.Exists(), nil
}

func decode(snap *firestore.DocumentSnapshot) (models.Account, error) {
	var doc accountDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Account{}, fmt.Errorf("firestore: decode %s: %w", snap.Ref.ID, err)
	}
	return models.Account{
		ID:                snap.Ref.ID,
		Email:             doc.Email,
		Name:              doc.Name,
		Picture:           doc.Picture,
		UsageCount:        doc.UsageCount,
		IsPro:             doc.IsPro,
		BillingCustomerID: doc.StripeCustomerID,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		LastLogin:         doc.LastLogin,
	}, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
