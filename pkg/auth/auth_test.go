package auth

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/storage"
	"blogicum/pkg/storage/memdb"
)

var now = time.Date(2025, 9, 28, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "correct horse" {
		t.Fatalf("hash must differ from password")
	}
	if !CheckPassword(hash, "correct horse") {
		t.Errorf("want password to match its hash")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Errorf("want wrong password to be rejected")
	}

	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("want error %v, got %v", ErrWeakPassword, err)
	}
}

func TestContextUser(t *testing.T) {
	ctx := context.Background()
	if UserFrom(ctx) != nil {
		t.Fatalf("want nil user for empty context")
	}

	ctx = WithUser(ctx, storage.User{ID: 7, Username: "alice"})
	u := UserFrom(ctx)
	if u == nil || u.ID != 7 {
		t.Errorf("want user 7, got %+v", u)
	}
}

func TestLoginFlow(t *testing.T) {
	db := memdb.New()
	ctx := context.Background()

	u, err := Register(ctx, db, storage.User{Username: " alice "}, "password123")
	if err != nil {
		t.Fatalf("unexpected error while registering: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("want trimmed username, got %q", u.Username)
	}
	if _, err := Register(ctx, db, storage.User{Username: "alice"}, "password123"); !errors.Is(err, storage.ErrUsernameTaken) {
		t.Errorf("want error %v, got %v", storage.ErrUsernameTaken, err)
	}
	if _, err := Register(ctx, db, storage.User{Username: "  "}, "password123"); !errors.Is(err, ErrEmptyUsername) {
		t.Errorf("want error %v, got %v", ErrEmptyUsername, err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid credentials", username: "alice", password: "password123"},
		{name: "wrong password", username: "alice", password: "password124", wantErr: ErrInvalidLogin},
		{name: "unknown user", username: "bob", password: "password123", wantErr: ErrInvalidLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := Login(ctx, db, tt.username, tt.password, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				return
			}
			if sess.Token == "" || sess.UserID != u.ID {
				t.Errorf("unexpected session %+v", sess)
			}

			got, err := Authenticate(ctx, db, sess.Token, now.Add(time.Hour))
			if err != nil {
				t.Fatalf("unexpected error while authenticating: %v", err)
			}
			if got.ID != u.ID {
				t.Errorf("want user %d, got %d", u.ID, got.ID)
			}

			if err := Logout(ctx, db, sess.Token); err != nil {
				t.Fatal(err)
			}
			if _, err := Authenticate(ctx, db, sess.Token, now); !errors.Is(err, ErrNoSession) {
				t.Errorf("want error %v after logout, got %v", ErrNoSession, err)
			}
		})
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	db := memdb.New()
	ctx := context.Background()

	if _, err := Register(ctx, db, storage.User{Username: "alice"}, "password123"); err != nil {
		t.Fatal(err)
	}
	sess, err := Login(ctx, db, "alice", "password123", now)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Authenticate(ctx, db, sess.Token, sess.Expires)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("want error %v, got %v", ErrNoSession, err)
	}
	if _, err := db.Session(ctx, sess.Token); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want expired session removed, got %v", err)
	}
}
