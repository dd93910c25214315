// Package auth hashes passwords, issues sessions and carries the signed-in
// user through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"blogicum/pkg/storage"
)

// SessionLifetime is how long a login stays valid.
const SessionLifetime = 14 * 24 * time.Hour

const minPasswordLen = 8

var (
	ErrInvalidLogin  = errors.New("invalid username or password")
	ErrNoSession     = errors.New("session not found or expired")
	ErrWeakPassword  = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrEmptyUsername = errors.New("username is required")
)

type ctxKeyUser struct{}

// WithUser returns a copy of ctx carrying the signed-in user.
func WithUser(ctx context.Context, u storage.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, &u)
}

// UserFrom returns the signed-in user or nil for anonymous requests.
func UserFrom(ctx context.Context) *storage.User {
	u, _ := ctx.Value(ctxKeyUser{}).(*storage.User)
	return u
}

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a user with a hashed password.
func Register(ctx context.Context, db storage.Storage, u storage.User, password string) (storage.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return storage.User{}, ErrEmptyUsername
	}

	hash, err := HashPassword(password)
	if err != nil {
		return storage.User{}, err
	}
	u.PasswordHash = hash

	return db.AddUser(ctx, u)
}

// Login checks the credentials and stores a new session valid from now.
func Login(ctx context.Context, db storage.Storage, username, password string, now time.Time) (storage.Session, error) {
	u, err := db.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		log.Debugf("[Login] no user %q", username)
		return storage.Session{}, ErrInvalidLogin
	}
	if err != nil {
		return storage.Session{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		log.Debugf("[Login] bad password for user ID:%d", u.ID)
		return storage.Session{}, ErrInvalidLogin
	}

	token, err := uuid.NewV4()
	if err != nil {
		return storage.Session{}, err
	}
	sess := storage.Session{
		Token:   token.String(),
		UserID:  u.ID,
		Expires: now.Add(SessionLifetime),
	}
	if err := db.AddSession(ctx, sess); err != nil {
		return storage.Session{}, err
	}

	return sess, nil
}

// Authenticate resolves a session token to its user. Expired sessions are
// removed and reported as ErrNoSession.
func Authenticate(ctx context.Context, db storage.Storage, token string, now time.Time) (storage.User, error) {
	sess, err := db.Session(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, ErrNoSession
	}
	if err != nil {
		return storage.User{}, err
	}
	if !now.Before(sess.Expires) {
		if err := db.DeleteSession(ctx, token); err != nil {
			log.Warnf("[Authenticate] failed to drop expired session: %v", err)
		}
		return storage.User{}, ErrNoSession
	}

	u, err := db.User(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, ErrNoSession
	}
	return u, err
}

func Logout(ctx context.Context, db storage.Storage, token string) error {
	return db.DeleteSession(ctx, token)
}
