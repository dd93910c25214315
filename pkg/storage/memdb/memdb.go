// Package memdb is an in-memory storage backend used in development mode and tests.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"blogicum/pkg/blog"
	"blogicum/pkg/storage"
)

type Store struct {
	mu sync.Mutex

	lastID     int64
	users      map[int64]storage.User
	sessions   map[string]storage.Session
	categories map[int64]storage.Category
	locations  map[int64]storage.Location
	posts      map[int64]storage.Post
	comments   map[int64]storage.Comment
}

func New() *Store {
	db := Store{
		users:      make(map[int64]storage.User),
		sessions:   make(map[string]storage.Session),
		categories: make(map[int64]storage.Category),
		locations:  make(map[int64]storage.Location),
		posts:      make(map[int64]storage.Post),
		comments:   make(map[int64]storage.Comment),
	}

	return &db
}

func (db *Store) Close() {}

// nextID must be called with db.mu held.
func (db *Store) nextID() int64 {
	db.lastID++
	return db.lastID
}

func (db *Store) AddUser(ctx context.Context, u storage.User) (storage.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.usernameTaken(u.Username, 0) {
		return storage.User{}, storage.ErrUsernameTaken
	}
	u.ID = db.nextID()
	if u.Joined.IsZero() {
		u.Joined = time.Now().UTC()
	}
	db.users[u.ID] = u

	return u, nil
}

func (db *Store) User(ctx context.Context, id int64) (storage.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (db *Store) UserByUsername(ctx context.Context, username string) (storage.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (db *Store) UpdateUser(ctx context.Context, u storage.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if db.usernameTaken(u.Username, u.ID) {
		return storage.ErrUsernameTaken
	}
	old.Username = u.Username
	old.FirstName = u.FirstName
	old.LastName = u.LastName
	old.Email = u.Email
	db.users[u.ID] = old

	return nil
}

func (db *Store) usernameTaken(username string, except int64) bool {
	for id, u := range db.users {
		if id != except && u.Username == username {
			return true
		}
	}
	return false
}

func (db *Store) AddSession(ctx context.Context, s storage.Session) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.sessions[s.Token] = s
	return nil
}

func (db *Store) Session(ctx context.Context, token string) (storage.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return s, nil
}

func (db *Store) DeleteSession(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.sessions, token)
	return nil
}

func (db *Store) AddCategory(ctx context.Context, c storage.Category) (storage.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, other := range db.categories {
		if other.Slug == c.Slug {
			return storage.Category{}, storage.ErrSlugTaken
		}
	}
	c.ID = db.nextID()
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	db.categories[c.ID] = c

	return c, nil
}

func (db *Store) CategoryBySlug(ctx context.Context, slug string) (storage.Category, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range db.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return storage.Category{}, storage.ErrNotFound
}

func (db *Store) Categories(ctx context.Context) ([]storage.Category, error) {
	db.mu.Lock()
	cats := make([]storage.Category, 0, len(db.categories))
	for _, c := range db.categories {
		cats = append(cats, c)
	}
	db.mu.Unlock()

	sort.Slice(cats, func(i, j int) bool {
		return cats[i].Title < cats[j].Title
	})
	return cats, nil
}

func (db *Store) AddLocation(ctx context.Context, l storage.Location) (storage.Location, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	l.ID = db.nextID()
	if l.Created.IsZero() {
		l.Created = time.Now().UTC()
	}
	db.locations[l.ID] = l

	return l, nil
}

func (db *Store) Locations(ctx context.Context) ([]storage.Location, error) {
	db.mu.Lock()
	locs := make([]storage.Location, 0, len(db.locations))
	for _, l := range db.locations {
		locs = append(locs, l)
	}
	db.mu.Unlock()

	sort.Slice(locs, func(i, j int) bool {
		return locs[i].Name < locs[j].Name
	})
	return locs, nil
}

func (db *Store) AddPost(ctx context.Context, p storage.Post) (storage.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[p.AuthorID]; !ok {
		return storage.Post{}, storage.ErrNotFound
	}
	if err := db.checkRefs(p); err != nil {
		return storage.Post{}, err
	}
	p.ID = db.nextID()
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}
	db.posts[p.ID] = stripPost(p)

	return db.hydrate(p), nil
}

func (db *Store) Post(ctx context.Context, id int64) (storage.Post, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return storage.Post{}, storage.ErrNotFound
	}
	return db.hydrate(p), nil
}

func (db *Store) UpdatePost(ctx context.Context, p storage.Post) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.posts[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := db.checkRefs(p); err != nil {
		return err
	}
	p.AuthorID = old.AuthorID
	p.Created = old.Created
	db.posts[p.ID] = stripPost(p)

	return nil
}

func (db *Store) DeletePost(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(db.posts, id)
	for cid, c := range db.comments {
		if c.PostID == id {
			delete(db.comments, cid)
		}
	}

	return nil
}

// Posts filters, sorts and paginates posts in memory. Visibility is decided by
// blog.IsVisible so that memdb stays in step with the SQL backends.
func (db *Store) Posts(ctx context.Context, q storage.PostQuery) (posts []storage.Post, numPages int, err error) {
	q = q.Normalize()

	db.mu.Lock()
	matched := make([]storage.Post, 0, len(db.posts))
	for _, p := range db.posts {
		p = db.hydrate(p)
		if q.CategoryID != 0 && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		if q.AuthorID != 0 && p.AuthorID != q.AuthorID {
			continue
		}
		if q.PublicOnly && !blog.IsVisible(p, q.Now) {
			continue
		}
		matched = append(matched, p)
	}
	db.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].PubDate.Equal(matched[j].PubDate) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].PubDate.After(matched[j].PubDate)
	})

	numPages = q.NumPages(len(matched))
	start := q.Offset()
	if start >= len(matched) {
		return []storage.Post{}, numPages, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], numPages, nil
}

func (db *Store) AddComment(ctx context.Context, c storage.Comment) (storage.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[c.PostID]; !ok {
		return storage.Comment{}, storage.ErrNotFound
	}
	if _, ok := db.users[c.AuthorID]; !ok {
		return storage.Comment{}, storage.ErrNotFound
	}
	c.ID = db.nextID()
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	c.Author = db.users[c.AuthorID]
	db.comments[c.ID] = c

	return c, nil
}

func (db *Store) Comment(ctx context.Context, id int64) (storage.Comment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[id]
	if !ok {
		return storage.Comment{}, storage.ErrNotFound
	}
	c.Author = db.users[c.AuthorID]
	return c, nil
}

func (db *Store) UpdateComment(ctx context.Context, c storage.Comment) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.comments[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	old.Text = c.Text
	db.comments[c.ID] = old

	return nil
}

func (db *Store) DeleteComment(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.comments[id]; !ok {
		return storage.ErrNotFound
	}
	delete(db.comments, id)

	return nil
}

func (db *Store) Comments(ctx context.Context, postID int64) ([]storage.Comment, error) {
	db.mu.Lock()
	comments := make([]storage.Comment, 0)
	for _, c := range db.comments {
		if c.PostID == postID {
			c.Author = db.users[c.AuthorID]
			comments = append(comments, c)
		}
	}
	db.mu.Unlock()

	sort.Slice(comments, func(i, j int) bool {
		if comments[i].Created.Equal(comments[j].Created) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].Created.Before(comments[j].Created)
	})
	return comments, nil
}

// checkRefs must be called with db.mu held.
func (db *Store) checkRefs(p storage.Post) error {
	if p.CategoryID != nil {
		if _, ok := db.categories[*p.CategoryID]; !ok {
			return storage.ErrNotFound
		}
	}
	if p.LocationID != nil {
		if _, ok := db.locations[*p.LocationID]; !ok {
			return storage.ErrNotFound
		}
	}
	return nil
}

// hydrate fills in the related records of p. It must be called with db.mu held.
func (db *Store) hydrate(p storage.Post) storage.Post {
	p.Author = db.users[p.AuthorID]
	p.Category, p.Location = nil, nil
	if p.CategoryID != nil {
		if c, ok := db.categories[*p.CategoryID]; ok {
			p.Category = &c
		}
	}
	if p.LocationID != nil {
		if l, ok := db.locations[*p.LocationID]; ok {
			p.Location = &l
		}
	}
	p.CommentCount = 0
	for _, c := range db.comments {
		if c.PostID == p.ID {
			p.CommentCount++
		}
	}
	return p
}

func stripPost(p storage.Post) storage.Post {
	p.Author = storage.User{}
	p.Category = nil
	p.Location = nil
	p.CommentCount = 0
	p.CategoryID = copyID(p.CategoryID)
	p.LocationID = copyID(p.LocationID)
	return p
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
