// Package mongo stores accounts as documents in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"example/comment-search-api/app/models"
	"example/comment-search-api/store"
)

var _ store.Accounts = (*Store)(nil)

// receiptWindow bounds the request ids remembered per account.
const receiptWindow = 200

type accountDoc struct {
	ID               string    `bson:"_id"`
	Email            string    `bson:"email,omitempty"`
	Name             string    `bson:"name,omitempty"`
	Picture          string    `bson:"picture,omitempty"`
	UsageCount       int       `bson:"usage_count"`
	IsPro            bool      `bson:"is_pro"`
	StripeCustomerID string    `bson:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
	LastLogin        time.Time `bson:"last_login,omitempty"`
}

type Store struct {
	client *mongo.Client
	col    *mongo.Collection
	now    func() time.Time
}

// Connect dials uri and returns a store over database/collection.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return New(client, client.Database(database).Collection(collection)), nil
}

func New(client *mongo.Client, col *mongo.Collection) *Store {
	return &Store{client: client, col: col, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the secondary index used for reverse lookups.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "stripe_customer_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create customer index: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Account, error) {
	var doc accountDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, store.ErrNotFound
		}
		return models.Account{}, fmt.Errorf("mongo: get account: %w", err)
	}
	return fromDoc(doc), nil
}

func (s *Store) RecordLogin(ctx context.Context, p models.Profile) error {
	if p.Subject == "" {
		return store.ErrInvalidInput
	}
	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"email":      p.Email,
			"name":       p.Name,
			"picture":    p.Picture,
			"last_login": now,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"usage_count": 0,
			"is_pro":      false,
			"created_at":  now,
		},
	}
	if err := s.upsert(ctx, p.Subject, update); err != nil {
		return fmt.Errorf("mongo: record login: %w", err)
	}
	return nil
}

func (s *Store) IncrementUsage(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	now := s.now()
	update := bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"is_pro":     false,
			"created_at": now,
		},
	}
	if err := s.upsert(ctx, id, update); err != nil {
		return fmt.Errorf("mongo: increment usage: %w", err)
	}
	return nil
}

// IncrementUsageOnce only matches the account while requestID is absent
// from its receipts. A repeat then falls through to the upsert insert,
// which collides on _id.
func (s *Store) IncrementUsageOnce(ctx context.Context, id, requestID string) (bool, error) {
	if id == "" || requestID == "" {
		return false, store.ErrInvalidInput
	}
	now := s.now()
	filter := bson.M{
		"_id":            id,
		"usage_receipts": bson.M{"$ne": requestID},
	}
	update := bson.M{
		"$inc": bson.M{"usage_count": 1},
		"$set": bson.M{"updated_at": now},
		"$push": bson.M{"usage_receipts": bson.M{
			"$each":  bson.A{requestID},
			"$slice": -receiptWindow,
		}},
		"$setOnInsert": bson.M{
			"is_pro":     false,
			"created_at": now,
		},
	}
	_, err := s.col.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("mongo: increment usage once: %w", err)
	}
	return true, nil
}

func (s *Store) MarkPro(ctx context.Context, id, customerID string) error {
	if id == "" {
		return store.ErrInvalidInput
	}
	now := s.now()
	set := bson.M{"is_pro": true, "updated_at": now}
	if customerID != "" {
		set["stripe_customer_id"] = customerID
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"usage_count": 0,
			"created_at":  now,
		},
	}
	if err := s.upsert(ctx, id, update); err != nil {
		return fmt.Errorf("mongo: mark pro: %w", err)
	}
	return nil
}

func (s *Store) RevokeProByCustomer(ctx context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, store.ErrInvalidInput
	}
	res, err := s.col.UpdateMany(ctx,
		bson.M{"stripe_customer_id": customerID},
		bson.M{"$set": bson.M{"is_pro": false, "updated_at": s.now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongo: revoke pro: %w", err)
	}
	return int(res.MatchedCount), nil
}

func (s *Store) ResetUsage(ctx context.Context, id string) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"usage_count": 0, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: reset usage: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) upsert(ctx context.Context, id string, update bson.M) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func fromDoc(d accountDoc) models.Account {
	return models.Account{
		ID:                d.ID,
		Email:             d.Email,
		Name:              d.Name,
		Picture:           d.Picture,
		UsageCount:        d.UsageCount,
		IsPro:             d.IsPro,
		BillingCustomerID: d.StripeCustomerID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		LastLogin:         d.LastLogin,
	}
}
