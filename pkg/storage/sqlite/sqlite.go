// Package sqlite implements storage.Storage on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"blogicum/pkg/storage"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so that timestamps compare correctly as text.
const timeLayout = "2006-01-02 15:04:05.000000"

var dialect = storage.Dialect{
	Placeholder: func(int) string { return "?" },
	Time:        ts,
}

func ts(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

type Store struct {
	db *sql.DB
}

// New opens the database at path, enables foreign keys and WAL and creates
// missing tables.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=3000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// translate maps driver errors onto the storage sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		msg := sqlErr.Error()
		switch {
		case strings.Contains(msg, "users.username"):
			return storage.ErrUsernameTaken
		case strings.Contains(msg, "categories.slug"):
			return storage.ErrSlugTaken
		case sqlErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", storage.ErrNotFound, msg)
		}
	}

	return err
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) AddUser(ctx context.Context, u storage.User) (storage.User, error) {
	if u.Joined.IsZero() {
		u.Joined = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, first_name, last_name, email, password_hash, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		ts(u.Joined),
	)
	if err != nil {
		return storage.User{}, translate(err)
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return storage.User{}, err
	}

	return u, nil
}

func (s *Store) User(ctx context.Context, id int64) (storage.User, error) {
	return s.user(ctx, `WHERE id = ?`, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	return s.user(ctx, `WHERE username = ?`, username)
}

func (s *Store) user(ctx context.Context, where string, arg any) (u storage.User, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, joined_at
		FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Joined,
	)
	if err != nil {
		return storage.User{}, translate(err)
	}

	u.Joined = u.Joined.UTC()
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u storage.User) error {
	return affected(s.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, first_name = ?, last_name = ?, email = ?
		WHERE id = ?
	`,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
		u.ID,
	))
}

func (s *Store) AddSession(ctx context.Context, sess storage.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)
	`,
		sess.Token,
		sess.UserID,
		ts(sess.Expires),
	)

	return translate(err)
}

func (s *Store) Session(ctx context.Context, token string) (sess storage.Session, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at FROM sessions WHERE token = ?
	`,
		token,
	).Scan(&sess.Token, &sess.UserID, &sess.Expires)
	if err != nil {
		return storage.Session{}, translate(err)
	}

	sess.Expires = sess.Expires.UTC()
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func (s *Store) AddCategory(ctx context.Context, c storage.Category) (storage.Category, error) {
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (title, description, slug, is_published, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		c.Title,
		c.Description,
		c.Slug,
		c.IsPublished,
		ts(c.Created),
	)
	if err != nil {
		return storage.Category{}, translate(err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return storage.Category{}, err
	}

	return c, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (c storage.Category, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT id, title, description, slug, is_published, created_at
		FROM categories
		WHERE slug = ?
	`,
		slug,
	).Scan(&c.ID, &c.Title, &c.Description, &c.Slug, &c.IsPublished, &c.Created)
	if err != nil {
		return storage.Category{}, translate(err)
	}

	c.Created = c.Created.UTC()
	return c, nil
}

func (s *Store) Categories(ctx context.Context) ([]storage.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, slug, is_published, created_at
		FROM categories
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []storage.Category
	for rows.Next() {
		var c storage.Category
		err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Slug, &c.IsPublished, &c.Created)
		if err != nil {
			return nil, err
		}
		c.Created = c.Created.UTC()
		cats = append(cats, c)
	}

	return cats, rows.Err()
}

func (s *Store) AddLocation(ctx context.Context, l storage.Location) (storage.Location, error) {
	if l.Created.IsZero() {
		l.Created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (name, is_published, created_at) VALUES (?, ?, ?)
	`,
		l.Name,
		l.IsPublished,
		ts(l.Created),
	)
	if err != nil {
		return storage.Location{}, translate(err)
	}
	l.ID, err = res.LastInsertId()
	if err != nil {
		return storage.Location{}, err
	}

	return l, nil
}

func (s *Store) Locations(ctx context.Context) ([]storage.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_published, created_at
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []storage.Location
	for rows.Next() {
		var l storage.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.IsPublished, &l.Created); err != nil {
			return nil, err
		}
		l.Created = l.Created.UTC()
		locs = append(locs, l)
	}

	return locs, rows.Err()
}

func (s *Store) AddPost(ctx context.Context, p storage.Post) (storage.Post, error) {
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (title, text, author_id, category_id, location_id, pub_date, is_published, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Title,
		p.Text,
		p.AuthorID,
		p.CategoryID,
		p.LocationID,
		ts(p.PubDate),
		p.IsPublished,
		ts(p.Created),
	)
	if err != nil {
		return storage.Post{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Post{}, err
	}

	return s.Post(ctx, id)
}

func (s *Store) Post(ctx context.Context, id int64) (storage.Post, error) {
	p, err := storage.ScanPost(s.db.QueryRowContext(ctx, storage.PostSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return storage.Post{}, translate(err)
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, p storage.Post) error {
	return affected(s.db.ExecContext(ctx, `
		UPDATE posts
		SET title = ?, text = ?, category_id = ?, location_id = ?, pub_date = ?, is_published = ?
		WHERE id = ?
	`,
		p.Title,
		p.Text,
		p.CategoryID,
		p.LocationID,
		ts(p.PubDate),
		p.IsPublished,
		p.ID,
	))
}

// DeletePost removes the post; its comments go with it through ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id))
}

func (s *Store) Posts(ctx context.Context, q storage.PostQuery) (posts []storage.Post, numPages int, err error) {
	q = q.Normalize()

	where, args := storage.PostWhere(dialect, q, 1)
	rows, err := s.db.QueryContext(ctx,
		storage.PostSelect+where+storage.PostOrder+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset())...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := storage.ScanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(p.id)
		FROM posts p
		LEFT JOIN categories c ON c.id = p.category_id
	`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return posts, q.NumPages(total), nil
}

func (s *Store) AddComment(ctx context.Context, c storage.Comment) (storage.Comment, error) {
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (post_id, author_id, text, created_at) VALUES (?, ?, ?, ?)
	`,
		c.PostID,
		c.AuthorID,
		c.Text,
		ts(c.Created),
	)
	if err != nil {
		return storage.Comment{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.Comment{}, err
	}

	return s.Comment(ctx, id)
}

const commentSelect = `
	SELECT cm.id, cm.post_id, cm.author_id, cm.text, cm.created_at,
		u.username, u.first_name, u.last_name, u.email
	FROM comments cm
	JOIN users u ON u.id = cm.author_id
`

func scanComment(row storage.Row) (c storage.Comment, err error) {
	err = row.Scan(
		&c.ID,
		&c.PostID,
		&c.AuthorID,
		&c.Text,
		&c.Created,
		&c.Author.Username,
		&c.Author.FirstName,
		&c.Author.LastName,
		&c.Author.Email,
	)
	c.Author.ID = c.AuthorID
	c.Created = c.Created.UTC()
	return
}

func (s *Store) Comment(ctx context.Context, id int64) (storage.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE cm.id = ?`, id))
	if err != nil {
		return storage.Comment{}, translate(err)
	}
	return c, nil
}

func (s *Store) UpdateComment(ctx context.Context, c storage.Comment) error {
	return affected(s.db.ExecContext(ctx, `UPDATE comments SET text = ? WHERE id = ?`, c.Text, c.ID))
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id))
}

func (s *Store) Comments(ctx context.Context, postID int64) ([]storage.Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE cm.post_id = ? ORDER BY cm.created_at, cm.id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []storage.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}
