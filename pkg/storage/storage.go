// Package storage defines the blog entities and the contract every storage backend implements.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrConnectDB       = fmt.Errorf("unable to establish DB connection")
	ErrDBNotResponding = fmt.Errorf("DB not responding")

	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrSlugTaken     = errors.New("slug already taken")
)

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Joined       time.Time
}

// FullName returns "First Last", or the username when both names are empty.
func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

type Session struct {
	Token   string
	UserID  int64
	Expires time.Time
}

type Category struct {
	ID          int64
	Title       string
	Description string
	Slug        string
	IsPublished bool
	Created     time.Time
}

type Location struct {
	ID          int64
	Name        string
	IsPublished bool
	Created     time.Time
}

// Post is a blog entry. Author, Category and Location are filled in by reads;
// writes only look at AuthorID, CategoryID and LocationID.
type Post struct {
	ID          int64
	Title       string
	Text        string
	AuthorID    int64
	CategoryID  *int64
	LocationID  *int64
	PubDate     time.Time
	IsPublished bool
	Created     time.Time

	Author       User
	Category     *Category
	Location     *Location
	CommentCount int
}

// Owner returns the id of the user allowed to modify the post.
func (p Post) Owner() int64 { return p.AuthorID }

type Comment struct {
	ID       int64
	PostID   int64
	AuthorID int64
	Text     string
	Created  time.Time

	Author User
}

// Owner returns the id of the user allowed to modify the comment.
func (c Comment) Owner() int64 { return c.AuthorID }

// PostQuery selects a page of posts ordered by PubDate descending, then ID descending.
type PostQuery struct {
	// CategoryID and AuthorID narrow the result when non-zero.
	CategoryID int64
	AuthorID   int64

	// PublicOnly keeps only posts visible to everyone at Now.
	PublicOnly bool
	Now        time.Time

	Page  int
	Limit int
}

// Normalize applies the defaults for out of range page and limit values.
func (q PostQuery) Normalize() PostQuery {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

// Offset returns the number of rows to skip for the query page.
func (q PostQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// NumPages returns the page count for total matching posts.
func (q PostQuery) NumPages(total int) int {
	if q.Limit <= 0 {
		return 0
	}
	return (total + q.Limit - 1) / q.Limit
}

// Storage is the entity store. Implementations return ErrNotFound for missing
// records and ErrUsernameTaken/ErrSlugTaken for unique violations.
type Storage interface {
	AddUser(ctx context.Context, u User) (User, error)
	User(ctx context.Context, id int64) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, u User) error

	AddSession(ctx context.Context, s Session) error
	Session(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error

	AddCategory(ctx context.Context, c Category) (Category, error)
	CategoryBySlug(ctx context.Context, slug string) (Category, error)
	Categories(ctx context.Context) ([]Category, error)

	AddLocation(ctx context.Context, l Location) (Location, error)
	Locations(ctx context.Context) ([]Location, error)

	AddPost(ctx context.Context, p Post) (Post, error)
	Post(ctx context.Context, id int64) (Post, error)
	UpdatePost(ctx context.Context, p Post) error
	DeletePost(ctx context.Context, id int64) error
	Posts(ctx context.Context, q PostQuery) (posts []Post, numPages int, err error)

	AddComment(ctx context.Context, c Comment) (Comment, error)
	Comment(ctx context.Context, id int64) (Comment, error)
	UpdateComment(ctx context.Context, c Comment) error
	DeleteComment(ctx context.Context, id int64) error
	Comments(ctx context.Context, postID int64) ([]Comment, error)

	Close()
}
