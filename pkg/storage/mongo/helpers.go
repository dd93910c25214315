package mongo

import (
	"context"

	"blogicum/pkg/storage"
)

// StorageConnect establishes a connection described by conf and checks that the server answers.
func StorageConnect(ctx context.Context, conf *Config) (*Storage, error) {
	db, err := New(ctx, conf)
	if err != nil {
		return nil, storage.ErrConnectDB
	}

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, storage.ErrDBNotResponding
	}

	return db, nil
}

// RestoreDB drops the whole database and recreates the indexes.
// WARNING: Use only in tests to avoid data loss.
func RestoreDB(ctx context.Context, db *Storage) error {
	if err := db.client.Database(db.dbName).Drop(ctx); err != nil {
		return err
	}
	return db.createIndexes(ctx)
}
