package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/storage"
	"blogicum/pkg/storage/storagetest"
)

const defaultPostgresPort = "5432"

func postgresConf() Config {
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = defaultPostgresPort
	}

	conf := Config{
		User:     "postgres",
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Host:     "localhost",
		Port:     port,
		DBName:   "blogicum_test",
	}

	return conf
}

func storageConnect(ctx context.Context) (*Store, error) {
	conf := postgresConf()
	db, err := New(ctx, conf.ConString())
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

// truncateAll restores the original state of DB for further testing.
func truncateAll(ctx context.Context, db *Store) error {
	_, err := db.db.Exec(ctx, `
		TRUNCATE TABLE comments, posts, locations, categories, sessions, users
		RESTART IDENTITY CASCADE
	`)
	return err
}

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func testStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("POSTGRES_PASSWORD") == "" {
		t.Skip("POSTGRES_PASSWORD is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storageConnect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate DB: %v", err)
	}
	if err := truncateAll(ctx, db); err != nil {
		t.Fatalf("failed to clear DB: %v", err)
	}

	t.Cleanup(func() {
		err := truncateAll(context.Background(), db)
		if err != nil {
			t.Errorf("unexpected error clearing tables: %v", err)
		}

		db.Close()
	})
	return db
}

func TestStore_Suite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return testStore(t)
	})
}

func TestStore_ForeignKeys(t *testing.T) {
	db := testStore(t)
	ctx := context.Background()

	_, err := db.AddPost(ctx, storage.Post{Title: "Orphan", AuthorID: 42, PubDate: time.Now()})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v for missing author, got %v", storage.ErrNotFound, err)
	}

	u, err := db.AddUser(ctx, storage.User{Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.AddComment(ctx, storage.Comment{PostID: 42, AuthorID: u.ID, Text: "hi"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v for missing post, got %v", storage.ErrNotFound, err)
	}
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	db := testStore(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}
