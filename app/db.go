package app

import (
	"context"
	"fmt"

	"example/comment-search-api/app/config"
	"example/comment-search-api/store"
	fsstore "example/comment-search-api/store/firestore"
	"example/comment-search-api/store/memory"
	mongostore "example/comment-search-api/store/mongo"
	pgstore "example/comment-search-api/store/postgres"
)

// OpenAccounts connects the account store selected by cfg.Driver.
func OpenAccounts(ctx context.Context, cfg config.StoreConfig) (store.Accounts, error) {
	switch cfg.Driver {
	case "firestore":
		if cfg.FirestoreProject == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore store")
		}
		return fsstore.Open(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials, cfg.FirestoreCollection)

	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for the mongo store")
		}
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case "postgres":
		s, err := pgstore.Open(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case "memory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
}
