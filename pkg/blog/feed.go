package blog

import (
	"context"
	"fmt"
	"time"

	"blogicum/pkg/storage"
)

// PageSize is the number of posts on every feed page.
const PageSize = 10

type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeCategory
	ScopeProfile
)

// Scope narrows the posts that make up a feed.
type Scope struct {
	Kind ScopeKind
	// Slug is the category slug for ScopeCategory.
	Slug string
	// Username is the profile owner for ScopeProfile.
	Username string
}

func All() Scope { return Scope{Kind: ScopeAll} }
func InCategory(slug string) Scope { return Scope{Kind: ScopeCategory, Slug: slug} }
func ByAuthor(username string) Scope { return Scope{Kind: ScopeProfile, Username: username} }

// Page is one page of a feed.
type Page struct {
	Posts       []storage.Post
	CurrentPage int
	TotalPages  int

	// Category is set for category feeds, Profile for profile feeds.
	Category *storage.Category
	Profile  *storage.User
}

// HasPrev reports whether there is a page before the current one.
func (p Page) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether there is a page after the current one.
func (p Page) HasNext() bool { return p.CurrentPage < p.TotalPages }

// PrevPage returns the previous page number.
func (p Page) PrevPage() int { return p.CurrentPage - 1 }

// NextPage returns the next page number.
func (p Page) NextPage() int { return p.CurrentPage + 1 }

// Feed resolves scope against db and returns the requested page of posts ordered
// newest first, each with its comment count.
//
// Home and category feeds only contain posts visible at now. A category feed
// for an unknown or unpublished category and a profile feed for an unknown user
// fail with storage.ErrNotFound. Profile feeds list every post of the user.
func Feed(ctx context.Context, db storage.Storage, scope Scope, now time.Time, page int) (Page, error) {
	q := storage.PostQuery{Page: page, Limit: PageSize, Now: now}.Normalize()
	res := Page{CurrentPage: q.Page}

	switch scope.Kind {
	case ScopeAll:
		q.PublicOnly = true

	case ScopeCategory:
		cat, err := db.CategoryBySlug(ctx, scope.Slug)
		if err != nil {
			return Page{}, err
		}
		if !cat.IsPublished {
			return Page{}, fmt.Errorf("category %q is hidden: %w", scope.Slug, storage.ErrNotFound)
		}
		res.Category = &cat
		q.CategoryID = cat.ID
		q.PublicOnly = true

	case ScopeProfile:
		user, err := db.UserByUsername(ctx, scope.Username)
		if err != nil {
			return Page{}, err
		}
		res.Profile = &user
		q.AuthorID = user.ID

	default:
		return Page{}, fmt.Errorf("unknown feed scope %d", scope.Kind)
	}

	posts, numPages, err := db.Posts(ctx, q)
	if err != nil {
		return Page{}, err
	}
	res.Posts = posts
	res.TotalPages = numPages

	return res, nil
}
