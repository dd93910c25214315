// Package postgres implements storage.Storage on top of a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"blogicum/pkg/storage"
)

//go:embed schema.sql
var schema string

var dialect = storage.Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Time:        func(t time.Time) any { return t.UTC() },
}

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// Migrate creates the tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// translate maps driver errors onto the storage sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			switch pgErr.ConstraintName {
			case "users_username_key":
				return storage.ErrUsernameTaken
			case "categories_slug_key":
				return storage.ErrSlugTaken
			}
		case "23503":
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pgErr.ConstraintName)
		}
	}

	return err
}

func (s *Store) AddUser(ctx context.Context, u storage.User) (storage.User, error) {
	if u.Joined.IsZero() {
		u.Joined = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, first_name, last_name, email, password_hash, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		u.Joined,
	).Scan(&u.ID)
	if err != nil {
		return storage.User{}, translate(err)
	}

	return u, nil
}

func (s *Store) User(ctx context.Context, id int64) (storage.User, error) {
	return s.user(ctx, `WHERE id = $1`, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	return s.user(ctx, `WHERE username = $1`, username)
}

func (s *Store) user(ctx context.Context, where string, arg any) (u storage.User, err error) {
	err = s.db.QueryRow(ctx, `
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
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, email = $5
		WHERE id = $1
	`,
		u.ID,
		u.Username,
		u.FirstName,
		u.LastName,
		u.Email,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) AddSession(ctx context.Context, sess storage.Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`,
		sess.Token,
		sess.UserID,
		sess.Expires.UTC(),
	)

	return translate(err)
}

func (s *Store) Session(ctx context.Context, token string) (sess storage.Session, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT token, user_id, expires_at FROM sessions WHERE token = $1
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
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (s *Store) AddCategory(ctx context.Context, c storage.Category) (storage.Category, error) {
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO categories (title, description, slug, is_published, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		c.Title,
		c.Description,
		c.Slug,
		c.IsPublished,
		c.Created,
	).Scan(&c.ID)
	if err != nil {
		return storage.Category{}, translate(err)
	}

	return c, nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (c storage.Category, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT id, title, description, slug, is_published, created_at
		FROM categories
		WHERE slug = $1
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
	rows, err := s.db.Query(ctx, `
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
	err := s.db.QueryRow(ctx, `
		INSERT INTO locations (name, is_published, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`,
		l.Name,
		l.IsPublished,
		l.Created,
	).Scan(&l.ID)
	if err != nil {
		return storage.Location{}, translate(err)
	}

	return l, nil
}

func (s *Store) Locations(ctx context.Context) ([]storage.Location, error) {
	rows, err := s.db.Query(ctx, `
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
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO posts (title, text, author_id, category_id, location_id, pub_date, is_published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		p.Title,
		p.Text,
		p.AuthorID,
		p.CategoryID,
		p.LocationID,
		p.PubDate.UTC(),
		p.IsPublished,
		p.Created,
	).Scan(&id)
	if err != nil {
		return storage.Post{}, translate(err)
	}

	return s.Post(ctx, id)
}

func (s *Store) Post(ctx context.Context, id int64) (storage.Post, error) {
	p, err := storage.ScanPost(s.db.QueryRow(ctx, storage.PostSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return storage.Post{}, translate(err)
	}
	return p, nil
}

func (s *Store) UpdatePost(ctx context.Context, p storage.Post) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE posts
		SET title = $2, text = $3, category_id = $4, location_id = $5, pub_date = $6, is_published = $7
		WHERE id = $1
	`,
		p.ID,
		p.Title,
		p.Text,
		p.CategoryID,
		p.LocationID,
		p.PubDate.UTC(),
		p.IsPublished,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeletePost removes the post; its comments go with it through ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Posts returns a page of posts matching q together with the total number of pages.
func (s *Store) Posts(ctx context.Context, q storage.PostQuery) (posts []storage.Post, numPages int, err error) {
	q = q.Normalize()

	where, args := storage.PostWhere(dialect, q, 1)
	n := len(args)
	rows, err := s.db.Query(ctx,
		storage.PostSelect+where+storage.PostOrder+fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2),
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
	err = s.db.QueryRow(ctx, `
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
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		c.PostID,
		c.AuthorID,
		c.Text,
		c.Created,
	).Scan(&id)
	if err != nil {
		return storage.Comment{}, translate(err)
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
	c, err := scanComment(s.db.QueryRow(ctx, commentSelect+` WHERE cm.id = $1`, id))
	if err != nil {
		return storage.Comment{}, translate(err)
	}
	return c, nil
}

func (s *Store) UpdateComment(ctx context.Context, c storage.Comment) error {
	tag, err := s.db.Exec(ctx, `UPDATE comments SET text = $2 WHERE id = $1`, c.ID, c.Text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) Comments(ctx context.Context, postID int64) ([]storage.Comment, error) {
	rows, err := s.db.Query(ctx, commentSelect+` WHERE cm.post_id = $1 ORDER BY cm.created_at, cm.id`, postID)
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
