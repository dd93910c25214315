// Package storagetest is a behaviour suite every storage.Storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"blogicum/pkg/storage"
)

var now = time.Date(2025, 9, 28, 12, 0, 0, 0, time.UTC)

// Run executes the suite. newStore must return an empty store; the suite does
// not close it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Posts", func(t *testing.T) { testPosts(t, newStore(t)) })
	t.Run("PostLifecycle", func(t *testing.T) { testPostLifecycle(t, newStore(t)) })
	t.Run("Comments", func(t *testing.T) { testComments(t, newStore(t)) })
}

func mustUser(t *testing.T, db storage.Storage, username string) storage.User {
	t.Helper()
	u, err := db.AddUser(context.Background(), storage.User{Username: username, Email: username + "@example.com"})
	if err != nil {
		t.Fatalf("unexpected error while adding user %q: %v", username, err)
	}
	return u
}

func mustPost(t *testing.T, db storage.Storage, p storage.Post) storage.Post {
	t.Helper()
	p, err := db.AddPost(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error while adding post %q: %v", p.Title, err)
	}
	return p
}

func testUsers(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	alice := mustUser(t, db, "alice")
	if alice.ID == 0 {
		t.Fatalf("want non-zero user ID")
	}
	mustUser(t, db, "bob")

	if _, err := db.AddUser(ctx, storage.User{Username: "alice"}); !errors.Is(err, storage.ErrUsernameTaken) {
		t.Errorf("want error %v, got %v", storage.ErrUsernameTaken, err)
	}

	got, err := db.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error while fetching user: %v", err)
	}
	if got.ID != alice.ID || got.Email != "alice@example.com" {
		t.Errorf("want user %+v, got %+v", alice, got)
	}

	if _, err := db.UserByUsername(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
	if _, err := db.User(ctx, alice.ID+1000); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}

	alice.Username = "bob"
	if err := db.UpdateUser(ctx, alice); !errors.Is(err, storage.ErrUsernameTaken) {
		t.Errorf("want error %v, got %v", storage.ErrUsernameTaken, err)
	}

	alice.Username = "alice_liddell"
	alice.FirstName = "Alice"
	alice.LastName = "Liddell"
	if err := db.UpdateUser(ctx, alice); err != nil {
		t.Fatalf("unexpected error while updating user: %v", err)
	}
	got, err = db.User(ctx, alice.ID)
	if err != nil {
		t.Fatalf("unexpected error while fetching user: %v", err)
	}
	if got.Username != "alice_liddell" || got.FullName() != "Alice Liddell" {
		t.Errorf("want updated user, got %+v", got)
	}
}

func testSessions(t *testing.T, db storage.Storage) {
	ctx := context.Background()
	u := mustUser(t, db, "alice")

	sess := storage.Session{Token: "token-1", UserID: u.ID, Expires: now.Add(time.Hour)}
	if err := db.AddSession(ctx, sess); err != nil {
		t.Fatalf("unexpected error while adding session: %v", err)
	}

	got, err := db.Session(ctx, "token-1")
	if err != nil {
		t.Fatalf("unexpected error while fetching session: %v", err)
	}
	if got.UserID != u.ID || !got.Expires.Equal(sess.Expires) {
		t.Errorf("want session %+v, got %+v", sess, got)
	}

	if err := db.DeleteSession(ctx, "token-1"); err != nil {
		t.Fatalf("unexpected error while deleting session: %v", err)
	}
	if _, err := db.Session(ctx, "token-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
}

func testCategories(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	travel, err := db.AddCategory(ctx, storage.Category{Title: "Travel", Slug: "travel", IsPublished: true})
	if err != nil {
		t.Fatalf("unexpected error while adding category: %v", err)
	}
	if _, err := db.AddCategory(ctx, storage.Category{Title: "Other", Slug: "travel"}); !errors.Is(err, storage.ErrSlugTaken) {
		t.Errorf("want error %v, got %v", storage.ErrSlugTaken, err)
	}
	if _, err := db.AddCategory(ctx, storage.Category{Title: "Art", Slug: "art"}); err != nil {
		t.Fatalf("unexpected error while adding category: %v", err)
	}

	got, err := db.CategoryBySlug(ctx, "travel")
	if err != nil {
		t.Fatalf("unexpected error while fetching category: %v", err)
	}
	if got.ID != travel.ID || !got.IsPublished {
		t.Errorf("want category %+v, got %+v", travel, got)
	}
	if _, err := db.CategoryBySlug(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}

	cats, err := db.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0].Slug != "art" || cats[1].Slug != "travel" {
		t.Errorf("want categories ordered by title, got %+v", cats)
	}

	if _, err := db.AddLocation(ctx, storage.Location{Name: "Paris", IsPublished: true}); err != nil {
		t.Fatal(err)
	}
	locs, err := db.Locations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].Name != "Paris" {
		t.Errorf("want one location, got %+v", locs)
	}
}

func testPosts(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	author := mustUser(t, db, "author")
	other := mustUser(t, db, "other")
	hidden, err := db.AddCategory(ctx, storage.Category{Title: "Hidden", Slug: "hidden"})
	if err != nil {
		t.Fatal(err)
	}
	travel, err := db.AddCategory(ctx, storage.Category{Title: "Travel", Slug: "travel", IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}

	testPosts := []storage.Post{
		{Title: "Seventh Post", Text: "7", AuthorID: author.ID, CategoryID: &travel.ID, IsPublished: true, PubDate: now.Add(-1 * time.Hour)},
		{Title: "Sixth Post", Text: "6", AuthorID: author.ID, IsPublished: true, PubDate: now.Add(-2 * time.Hour)},
		{Title: "Fifth Post", Text: "5", AuthorID: other.ID, CategoryID: &travel.ID, IsPublished: true, PubDate: now.Add(-2 * time.Hour)},
		{Title: "Scheduled Post", Text: "s", AuthorID: author.ID, IsPublished: true, PubDate: now.Add(time.Hour)},
		{Title: "Boundary Post", Text: "b", AuthorID: author.ID, IsPublished: true, PubDate: now},
		{Title: "Draft Post", Text: "d", AuthorID: author.ID, IsPublished: false, PubDate: now.Add(-3 * time.Hour)},
		{Title: "Hidden Category Post", Text: "h", AuthorID: author.ID, CategoryID: &hidden.ID, IsPublished: true, PubDate: now.Add(-4 * time.Hour)},
		{Title: "First Post", Text: "1", AuthorID: other.ID, IsPublished: true, PubDate: now.Add(-5 * time.Hour)},
	}
	for _, p := range testPosts {
		mustPost(t, db, p)
	}

	tests := []struct {
		name         string
		query        storage.PostQuery
		wantTitles   []string
		wantNumPages int
	}{
		{
			name:         "public posts",
			query:        storage.PostQuery{PublicOnly: true, Now: now, Page: 1, Limit: 10},
			wantTitles:   []string{"Seventh Post", "Fifth Post", "Sixth Post", "First Post"},
			wantNumPages: 1,
		},
		{
			name:         "public posts, second page",
			query:        storage.PostQuery{PublicOnly: true, Now: now, Page: 2, Limit: 2},
			wantTitles:   []string{"Sixth Post", "First Post"},
			wantNumPages: 2,
		},
		{
			name:         "category posts",
			query:        storage.PostQuery{PublicOnly: true, Now: now, CategoryID: travel.ID},
			wantTitles:   []string{"Seventh Post", "Fifth Post"},
			wantNumPages: 1,
		},
		{
			name:  "author posts ignore visibility",
			query: storage.PostQuery{AuthorID: author.ID, Now: now},
			wantTitles: []string{
				"Scheduled Post", "Boundary Post", "Seventh Post", "Sixth Post",
				"Draft Post", "Hidden Category Post",
			},
			wantNumPages: 1,
		},
		{
			name:         "page out of range",
			query:        storage.PostQuery{PublicOnly: true, Now: now, Page: 5, Limit: 3},
			wantTitles:   []string{},
			wantNumPages: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, numPages, err := db.Posts(ctx, tt.query)
			if err != nil {
				t.Fatalf("Posts returned error: %v", err)
			}
			if numPages != tt.wantNumPages {
				t.Errorf("want numPages %d, got %d", tt.wantNumPages, numPages)
			}
			gotTitles := []string{}
			for _, p := range posts {
				gotTitles = append(gotTitles, p.Title)
			}
			if !reflect.DeepEqual(gotTitles, tt.wantTitles) {
				t.Errorf("want titles %v, got %v", tt.wantTitles, gotTitles)
			}
		})
	}
}

func testPostLifecycle(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	author := mustUser(t, db, "author")
	cat, err := db.AddCategory(ctx, storage.Category{Title: "Travel", Slug: "travel", IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}
	loc, err := db.AddLocation(ctx, storage.Location{Name: "Paris", IsPublished: true})
	if err != nil {
		t.Fatal(err)
	}

	p := mustPost(t, db, storage.Post{
		Title:       "Post",
		Text:        "Text",
		AuthorID:    author.ID,
		CategoryID:  &cat.ID,
		LocationID:  &loc.ID,
		PubDate:     now,
		IsPublished: true,
	})
	if p.ID == 0 {
		t.Fatalf("want non-zero post ID")
	}

	got, err := db.Post(ctx, p.ID)
	if err != nil {
		t.Fatalf("unexpected error while fetching post: %v", err)
	}
	if got.Author.Username != "author" {
		t.Errorf("want author %q, got %q", "author", got.Author.Username)
	}
	if got.Category == nil || got.Category.Slug != "travel" {
		t.Errorf("want category travel, got %+v", got.Category)
	}
	if got.Location == nil || got.Location.Name != "Paris" {
		t.Errorf("want location Paris, got %+v", got.Location)
	}
	if !got.PubDate.Equal(now) {
		t.Errorf("want pub date %v, got %v", now, got.PubDate)
	}

	got.Title = "Edited"
	got.CategoryID = nil
	got.LocationID = nil
	got.IsPublished = false
	if err := db.UpdatePost(ctx, got); err != nil {
		t.Fatalf("unexpected error while updating post: %v", err)
	}
	got, err = db.Post(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Edited" || got.Category != nil || got.Location != nil || got.IsPublished {
		t.Errorf("want updated post, got %+v", got)
	}

	for i := 0; i < 2; i++ {
		if _, err := db.AddComment(ctx, storage.Comment{PostID: p.ID, AuthorID: author.ID, Text: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	got, err = db.Post(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CommentCount != 2 {
		t.Errorf("want comment count 2, got %d", got.CommentCount)
	}

	if err := db.DeletePost(ctx, p.ID); err != nil {
		t.Fatalf("unexpected error while deleting post: %v", err)
	}
	if _, err := db.Post(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
	comments, err := db.Comments(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 0 {
		t.Errorf("want comments removed with the post, got %d", len(comments))
	}
	if err := db.DeletePost(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
	if err := db.UpdatePost(ctx, got); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
}

func testComments(t *testing.T, db storage.Storage) {
	ctx := context.Background()

	author := mustUser(t, db, "author")
	p := mustPost(t, db, storage.Post{Title: "Post", Text: "Text", AuthorID: author.ID, PubDate: now})

	texts := []string{"first", "second", "third"}
	var ids []int64
	for i, text := range texts {
		c, err := db.AddComment(ctx, storage.Comment{
			PostID:   p.ID,
			AuthorID: author.ID,
			Text:     text,
			Created:  now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error while adding comment: %v", err)
		}
		ids = append(ids, c.ID)
	}

	comments, err := db.Comments(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	var gotTexts []string
	for _, c := range comments {
		gotTexts = append(gotTexts, c.Text)
		if c.Author.Username != "author" {
			t.Errorf("want comment author %q, got %q", "author", c.Author.Username)
		}
	}
	if !reflect.DeepEqual(gotTexts, texts) {
		t.Errorf("want comments %v, got %v", texts, gotTexts)
	}

	if err := db.UpdateComment(ctx, storage.Comment{ID: ids[0], Text: "edited"}); err != nil {
		t.Fatalf("unexpected error while updating comment: %v", err)
	}
	c, err := db.Comment(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "edited" || c.PostID != p.ID || c.AuthorID != author.ID {
		t.Errorf("want edited comment on post %d, got %+v", p.ID, c)
	}

	if err := db.DeleteComment(ctx, ids[1]); err != nil {
		t.Fatalf("unexpected error while deleting comment: %v", err)
	}
	if _, err := db.Comment(ctx, ids[1]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}
	if err := db.DeleteComment(ctx, ids[1]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v, got %v", storage.ErrNotFound, err)
	}

	if _, err := db.AddComment(ctx, storage.Comment{PostID: p.ID + 1000, AuthorID: author.ID, Text: "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want error %v for missing post, got %v", storage.ErrNotFound, err)
	}
}
