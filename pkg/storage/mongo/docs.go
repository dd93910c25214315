package mongo

import (
	"time"

	"blogicum/pkg/storage"
)

type userDoc struct {
	ID           int64     `bson:"_id"`
	Username     string    `bson:"username"`
	FirstName    string    `bson:"first_name"`
	LastName     string    `bson:"last_name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Joined       time.Time `bson:"joined_at"`
}

func toUserDoc(u storage.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Joined:       u.Joined,
	}
}

func (d userDoc) user() storage.User {
	return storage.User{
		ID:           d.ID,
		Username:     d.Username,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Joined:       d.Joined.UTC(),
	}
}

type sessionDoc struct {
	Token   string    `bson:"_id"`
	UserID  int64     `bson:"user_id"`
	Expires time.Time `bson:"expires_at"`
}

type categoryDoc struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Slug        string    `bson:"slug"`
	IsPublished bool      `bson:"is_published"`
	Created     time.Time `bson:"created_at"`
}

func toCategoryDoc(c storage.Category) categoryDoc {
	return categoryDoc{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Slug:        c.Slug,
		IsPublished: c.IsPublished,
		Created:     c.Created,
	}
}

func (d categoryDoc) category() storage.Category {
	return storage.Category{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Slug:        d.Slug,
		IsPublished: d.IsPublished,
		Created:     d.Created.UTC(),
	}
}

type locationDoc struct {
	ID          int64     `bson:"_id"`
	Name        string    `bson:"name"`
	IsPublished bool      `bson:"is_published"`
	Created     time.Time `bson:"created_at"`
}

func toLocationDoc(l storage.Location) locationDoc {
	return locationDoc{ID: l.ID, Name: l.Name, IsPublished: l.IsPublished, Created: l.Created}
}

func (d locationDoc) location() storage.Location {
	return storage.Location{ID: d.ID, Name: d.Name, IsPublished: d.IsPublished, Created: d.Created.UTC()}
}

type postDoc struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Text        string    `bson:"text"`
	AuthorID    int64     `bson:"author_id"`
	CategoryID  *int64    `bson:"category_id"`
	LocationID  *int64    `bson:"location_id"`
	PubDate     time.Time `bson:"pub_date"`
	IsPublished bool      `bson:"is_published"`
	Created     time.Time `bson:"created_at"`
}

func toPostDoc(p storage.Post) postDoc {
	return postDoc{
		ID:          p.ID,
		Title:       p.Title,
		Text:        p.Text,
		AuthorID:    p.AuthorID,
		CategoryID:  p.CategoryID,
		LocationID:  p.LocationID,
		PubDate:     msec(p.PubDate),
		IsPublished: p.IsPublished,
		Created:     msec(p.Created),
	}
}

func (d postDoc) post() storage.Post {
	return storage.Post{
		ID:          d.ID,
		Title:       d.Title,
		Text:        d.Text,
		AuthorID:    d.AuthorID,
		CategoryID:  d.CategoryID,
		LocationID:  d.LocationID,
		PubDate:     d.PubDate.UTC(),
		IsPublished: d.IsPublished,
		Created:     d.Created.UTC(),
	}
}

type commentDoc struct {
	ID       int64     `bson:"_id"`
	PostID   int64     `bson:"post_id"`
	AuthorID int64     `bson:"author_id"`
	Text     string    `bson:"text"`
	Created  time.Time `bson:"created_at"`
}

func toCommentDoc(c storage.Comment) commentDoc {
	return commentDoc{
		ID:       c.ID,
		PostID:   c.PostID,
		AuthorID: c.AuthorID,
		Text:     c.Text,
		Created:  msec(c.Created),
	}
}

func (d commentDoc) comment() storage.Comment {
	return storage.Comment{
		ID:       d.ID,
		PostID:   d.PostID,
		AuthorID: d.AuthorID,
		Text:     d.Text,
		Created:  d.Created.UTC(),
	}
}
