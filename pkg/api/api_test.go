package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
	"blogicum/pkg/censor"
	"blogicum/pkg/storage"
	"blogicum/pkg/storage/memdb"
)

var testNow = time.Date(2025, 9, 28, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

type testEnv struct {
	api *API
	db  *memdb.Store
	now time.Time

	alice, bob             storage.User
	aliceCookie, bobCookie *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memdb.New()
	api, err := New("blogicum-test", db, nil)
	if err != nil {
		t.Fatalf("unexpected error while creating API: %v", err)
	}

	env := &testEnv{api: api, db: db, now: testNow}
	api.Now = func() time.Time { return env.now }

	env.alice, env.aliceCookie = env.register(t, "alice")
	env.bob, env.bobCookie = env.register(t, "bob")

	return env
}

func (e *testEnv) register(t *testing.T, username string) (storage.User, *http.Cookie) {
	t.Helper()
	ctx := context.Background()
	u, err := auth.Register(ctx, e.db, storage.User{Username: username}, "password123")
	if err != nil {
		t.Fatalf("unexpected error while registering %q: %v", username, err)
	}
	sess, err := auth.Login(ctx, e.db, username, "password123", e.now)
	if err != nil {
		t.Fatalf("unexpected error while logging in %q: %v", username, err)
	}
	return u, &http.Cookie{Name: sessionCookie, Value: sess.Token}
}

func (e *testEnv) post(t *testing.T, p storage.Post) storage.Post {
	t.Helper()
	if p.AuthorID == 0 {
		p.AuthorID = e.alice.ID
	}
	if p.Text == "" {
		p.Text = "text of " + p.Title
	}
	p, err := e.db.AddPost(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error while adding post: %v", err)
	}
	return p
}

func (e *testEnv) comment(t *testing.T, c storage.Comment) storage.Comment {
	t.Helper()
	c, err := e.db.AddComment(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error while adding comment: %v", err)
	}
	return c
}

func (e *testEnv) category(t *testing.T, slug string, published bool) storage.Category {
	t.Helper()
	c, err := e.db.AddCategory(context.Background(), storage.Category{Title: strings.ToUpper(slug), Slug: slug, IsPublished: published})
	if err != nil {
		t.Fatalf("unexpected error while adding category: %v", err)
	}
	return c
}

// do sends a request through the router. A non-nil form makes it a form post.
func (e *testEnv) do(method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	e.api.Router.ServeHTTP(rr, req)
	return rr
}

func wantRedirect(t *testing.T, rr *httptest.ResponseRecorder, code int, location string) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("want status code %v, got status code %v", code, rr.Code)
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Errorf("want redirect to %q, got %q", location, got)
	}
}

func TestAPI_requestIDMiddleware(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "test-req-id-123")
	rr := httptest.NewRecorder()
	env.api.Router.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-Id"); got != "test-req-id-123" {
		t.Errorf("want X-Request-Id header %q, got %q", "test-req-id-123", got)
	}

	rr = env.do(http.MethodGet, "/", nil, nil)
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("want generated X-Request-Id header")
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("want html content type, got %q", ct)
	}
}

func TestAPI_indexHandlerScheduledPost(t *testing.T) {
	env := newTestEnv(t)
	travel := env.category(t, "travel", true)

	env.post(t, storage.Post{Title: "Earlier post", IsPublished: true, PubDate: testNow.Add(-2 * time.Hour)})
	env.post(t, storage.Post{Title: "Scheduled post", CategoryID: &travel.ID, IsPublished: true, PubDate: testNow.Add(time.Hour)})

	rr := env.do(http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Earlier post") {
		t.Errorf("want earlier post on home page")
	}
	if strings.Contains(body, "Scheduled post") {
		t.Errorf("want scheduled post hidden before its pub date")
	}

	env.now = testNow.Add(90 * time.Minute)

	body = env.do(http.MethodGet, "/", nil, nil).Body.String()
	scheduled := strings.Index(body, "Scheduled post")
	earlier := strings.Index(body, "Earlier post")
	if scheduled < 0 {
		t.Fatalf("want scheduled post on home page after its pub date")
	}
	if earlier < 0 || scheduled > earlier {
		t.Errorf("want scheduled post listed above the earlier post")
	}
}

func TestAPI_indexHandlerPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		env.post(t, storage.Post{
			Title:       "Post number " + strconv.Itoa(i),
			IsPublished: true,
			PubDate:     testNow.Add(-time.Duration(i+1) * time.Minute),
		})
	}

	tests := []struct {
		name     string
		path     string
		want     []string
		dontWant []string
	}{
		{name: "first page", path: "/", want: []string{"Post number 0", "Post number 9", "Page 1 of 2"}, dontWant: []string{"Post number 10"}},
		{name: "second page", path: "/?page=2", want: []string{"Post number 10", "Post number 11", "Page 2 of 2"}, dontWant: []string{"Post number 9<"}},
		{name: "malformed page", path: "/?page=abc", want: []string{"Post number 0", "Page 1 of 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, nil, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
			}
			body := rr.Body.String()
			for _, s := range tt.want {
				if !strings.Contains(body, s) {
					t.Errorf("want %q in body", s)
				}
			}
			for _, s := range tt.dontWant {
				if strings.Contains(body, s) {
					t.Errorf("want no %q in body", s)
				}
			}
		})
	}
}

func TestAPI_categoryHandler(t *testing.T) {
	env := newTestEnv(t)
	travel := env.category(t, "travel", true)
	hidden := env.category(t, "hidden", false)
	env.post(t, storage.Post{Title: "Trip report", CategoryID: &travel.ID, IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	env.post(t, storage.Post{Title: "Uncategorized", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	env.post(t, storage.Post{Title: "Secret", CategoryID: &hidden.ID, IsPublished: true, PubDate: testNow.Add(-time.Hour)})

	rr := env.do(http.MethodGet, "/category/travel/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "Trip report") || strings.Contains(body, "Uncategorized") {
		t.Errorf("want only travel posts in category feed")
	}

	for _, path := range []string{"/category/hidden/", "/category/missing/"} {
		if rr := env.do(http.MethodGet, path, nil, nil); rr.Code != http.StatusNotFound {
			t.Errorf("%s: want status code %v, got status code %v", path, http.StatusNotFound, rr.Code)
		}
	}

	if strings.Contains(env.do(http.MethodGet, "/", nil, nil).Body.String(), "Secret") {
		t.Errorf("want post in hidden category excluded from home page")
	}
}

func TestAPI_profileHandler(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, storage.Post{Title: "Draft post", IsPublished: false, PubDate: testNow.Add(-time.Hour)})
	env.post(t, storage.Post{Title: "Future post", IsPublished: true, PubDate: testNow.Add(time.Hour)})

	for _, cookie := range []*http.Cookie{nil, env.bobCookie, env.aliceCookie} {
		rr := env.do(http.MethodGet, "/profile/alice/", nil, cookie)
		if rr.Code != http.StatusOK {
			t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "Draft post") || !strings.Contains(body, "Future post") {
			t.Errorf("want every post of the user on the profile page")
		}
		wantEdit := cookie == env.aliceCookie
		if got := strings.Contains(body, `href="/profile/edit/"`); got != wantEdit {
			t.Errorf("want edit link %v, got %v", wantEdit, got)
		}
	}

	if rr := env.do(http.MethodGet, "/profile/nobody/", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v, got status code %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_postDetailHandler(t *testing.T) {
	env := newTestEnv(t)
	hidden := env.category(t, "hidden", false)
	public := env.post(t, storage.Post{Title: "Public post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	draft := env.post(t, storage.Post{Title: "Draft post", IsPublished: false, PubDate: testNow.Add(-time.Hour)})
	inHidden := env.post(t, storage.Post{Title: "Hidden post", CategoryID: &hidden.ID, IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	env.comment(t, storage.Comment{PostID: public.ID, AuthorID: env.bob.ID, Text: "Nice one"})

	tests := []struct {
		name   string
		path   string
		cookie *http.Cookie
		want   int
	}{
		{name: "public post, anonymous", path: postURL(public.ID), want: http.StatusOK},
		{name: "draft, anonymous", path: postURL(draft.ID), want: http.StatusNotFound},
		{name: "draft, other user", path: postURL(draft.ID), cookie: env.bobCookie, want: http.StatusNotFound},
		{name: "draft, author", path: postURL(draft.ID), cookie: env.aliceCookie, want: http.StatusOK},
		{name: "hidden category, anonymous", path: postURL(inHidden.ID), want: http.StatusNotFound},
		{name: "hidden category, author", path: postURL(inHidden.ID), cookie: env.aliceCookie, want: http.StatusOK},
		{name: "missing post", path: "/posts/999/", want: http.StatusNotFound},
		{name: "non-numeric id", path: "/posts/abc/", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, nil, tt.cookie)
			if rr.Code != tt.want {
				t.Errorf("want status code %v, got status code %v", tt.want, rr.Code)
			}
		})
	}

	body := env.do(http.MethodGet, postURL(public.ID), nil, nil).Body.String()
	if !strings.Contains(body, "Nice one") {
		t.Errorf("want comments on detail page")
	}
}

func TestAPI_loginRequired(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	c := env.comment(t, storage.Comment{PostID: p.ID, AuthorID: env.alice.ID, Text: "hi"})

	tests := []struct {
		method string
		path   string
	}{
		{method: http.MethodGet, path: "/posts/new/"},
		{method: http.MethodPost, path: "/posts/new/"},
		{method: http.MethodPost, path: postURL(p.ID) + "edit/"},
		{method: http.MethodPost, path: postURL(p.ID) + "delete/"},
		{method: http.MethodPost, path: postURL(p.ID) + "comment/"},
		{method: http.MethodPost, path: "/comments/" + strconv.FormatInt(c.ID, 10) + "/edit/"},
		{method: http.MethodPost, path: "/comments/" + strconv.FormatInt(c.ID, 10) + "/delete/"},
		{method: http.MethodGet, path: "/profile/edit/"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(tt.method, tt.path, url.Values{"text": {"changed"}, "title": {"changed"}}, nil)
			wantRedirect(t, rr, http.StatusFound, "/auth/login/?next="+url.QueryEscape(tt.path))
		})
	}

	if _, err := env.db.Post(context.Background(), p.ID); err != nil {
		t.Errorf("want post untouched, got %v", err)
	}

	rr := env.do(http.MethodGet, "/posts/new/", nil, &http.Cookie{Name: sessionCookie, Value: "stale"})
	wantRedirect(t, rr, http.StatusFound, "/auth/login/?next="+url.QueryEscape("/posts/new/"))
}

func TestAPI_ownershipGate(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Alice post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	c := env.comment(t, storage.Comment{PostID: p.ID, AuthorID: env.alice.ID, Text: "Alice comment"})
	commentPath := "/comments/" + strconv.FormatInt(c.ID, 10) + "/"
	form := url.Values{
		"title":    {"Hijacked"},
		"text":     {"Hijacked"},
		"pub_date": {"2025-09-28T10:00"},
	}

	tests := []struct {
		method string
		path   string
	}{
		{method: http.MethodGet, path: postURL(p.ID) + "edit/"},
		{method: http.MethodPost, path: postURL(p.ID) + "edit/"},
		{method: http.MethodGet, path: postURL(p.ID) + "delete/"},
		{method: http.MethodPost, path: postURL(p.ID) + "delete/"},
		{method: http.MethodGet, path: commentPath + "edit/"},
		{method: http.MethodPost, path: commentPath + "edit/"},
		{method: http.MethodGet, path: commentPath + "delete/"},
		{method: http.MethodPost, path: commentPath + "delete/"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(tt.method, tt.path, form, env.bobCookie)
			wantRedirect(t, rr, http.StatusSeeOther, postURL(p.ID))

			gotPost, err := env.db.Post(context.Background(), p.ID)
			if err != nil {
				t.Fatalf("want post kept, got %v", err)
			}
			if gotPost.Title != "Alice post" || gotPost.AuthorID != env.alice.ID {
				t.Errorf("want post unchanged, got %+v", gotPost)
			}
			gotComment, err := env.db.Comment(context.Background(), c.ID)
			if err != nil {
				t.Fatalf("want comment kept, got %v", err)
			}
			if gotComment.Text != "Alice comment" {
				t.Errorf("want comment unchanged, got %q", gotComment.Text)
			}
		})
	}

	if rr := env.do(http.MethodPost, "/posts/999/edit/", form, env.bobCookie); rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v for missing post, got %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_createPostHandler(t *testing.T) {
	env := newTestEnv(t)
	travel := env.category(t, "travel", true)

	rr := env.do(http.MethodGet, "/posts/new/", nil, env.aliceCookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), testNow.Format(inputDate)) {
		t.Errorf("want pub date prefilled with current time")
	}

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
	}{
		{
			name:     "missing title",
			form:     url.Values{"text": {"Body"}, "pub_date": {"2025-09-28T10:00"}},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "bad pub date",
			form:     url.Values{"title": {"Title"}, "text": {"Body"}, "pub_date": {"yesterday"}},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "unknown category",
			form:     url.Values{"title": {"Title"}, "text": {"Body"}, "pub_date": {"2025-09-28T10:00"}, "category": {"999"}},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "title too long",
			form:     url.Values{"title": {strings.Repeat("a", 257)}, "text": {"Body"}, "pub_date": {"2025-09-28T10:00"}},
			wantCode: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/posts/new/", tt.form, env.aliceCookie)
			if rr.Code != tt.wantCode {
				t.Errorf("want status code %v, got status code %v", tt.wantCode, rr.Code)
			}
		})
	}

	form := url.Values{
		"title":        {"Fresh post"},
		"text":         {"Body"},
		"pub_date":     {"2025-09-28T10:00"},
		"category":     {strconv.FormatInt(travel.ID, 10)},
		"is_published": {"on"},
		"author":       {strconv.FormatInt(env.bob.ID, 10)},
	}
	rr = env.do(http.MethodPost, "/posts/new/", form, env.aliceCookie)
	wantRedirect(t, rr, http.StatusSeeOther, "/profile/alice/")

	posts, _, err := env.db.Posts(context.Background(), storage.PostQuery{AuthorID: env.alice.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("want 1 post by alice, got %d", len(posts))
	}
	got := posts[0]
	if got.Title != "Fresh post" || !got.IsPublished || got.CategoryID == nil || *got.CategoryID != travel.ID {
		t.Errorf("unexpected post %+v", got)
	}
	if !got.PubDate.Equal(time.Date(2025, 9, 28, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("want pub date 2025-09-28 10:00 UTC, got %v", got.PubDate)
	}
}

func TestAPI_editPostHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Old title", IsPublished: true, PubDate: testNow.Add(-time.Hour)})

	rr := env.do(http.MethodGet, postURL(p.ID)+"edit/", nil, env.aliceCookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Old title") {
		t.Errorf("want form prefilled with current title")
	}

	rr = env.do(http.MethodPost, postURL(p.ID)+"edit/", url.Values{"title": {""}, "text": {"x"}, "pub_date": {"2025-09-28T10:00"}}, env.aliceCookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v, got status code %v", http.StatusUnprocessableEntity, rr.Code)
	}

	form := url.Values{"title": {"New title"}, "text": {"New text"}, "pub_date": {"2025-09-29T08:30"}}
	rr = env.do(http.MethodPost, postURL(p.ID)+"edit/", form, env.aliceCookie)
	wantRedirect(t, rr, http.StatusSeeOther, "/profile/alice/")

	got, err := env.db.Post(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New title" || got.Text != "New text" || got.IsPublished {
		t.Errorf("unexpected post after edit %+v", got)
	}
	if got.AuthorID != env.alice.ID {
		t.Errorf("want author kept, got %d", got.AuthorID)
	}
}

func TestAPI_deletePostHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Doomed", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	c := env.comment(t, storage.Comment{PostID: p.ID, AuthorID: env.bob.ID, Text: "bye"})

	rr := env.do(http.MethodGet, postURL(p.ID)+"delete/", nil, env.aliceCookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Doomed") {
		t.Fatalf("want confirmation page, got status %v", rr.Code)
	}

	rr = env.do(http.MethodPost, postURL(p.ID)+"delete/", url.Values{}, env.aliceCookie)
	wantRedirect(t, rr, http.StatusSeeOther, "/profile/alice/")

	if _, err := env.db.Post(context.Background(), p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want post deleted, got %v", err)
	}
	if _, err := env.db.Comment(context.Background(), c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want comments of deleted post removed, got %v", err)
	}
}

func TestAPI_addCommentHandler(t *testing.T) {
	env := newTestEnv(t)
	target := env.post(t, storage.Post{Title: "Target", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	other := env.post(t, storage.Post{Title: "Other", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	draft := env.post(t, storage.Post{Title: "Draft", IsPublished: false, PubDate: testNow.Add(-time.Hour)})

	form := url.Values{"text": {"Bound to path"}, "post": {strconv.FormatInt(other.ID, 10)}}
	rr := env.do(http.MethodPost, postURL(target.ID)+"comment/", form, env.bobCookie)
	wantRedirect(t, rr, http.StatusSeeOther, postURL(target.ID))

	comments, err := env.db.Comments(context.Background(), target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].Text != "Bound to path" || comments[0].AuthorID != env.bob.ID {
		t.Fatalf("want one comment by bob on target post, got %+v", comments)
	}
	if !comments[0].Created.Equal(testNow) {
		t.Errorf("want comment created at request time, got %v", comments[0].Created)
	}
	if others, _ := env.db.Comments(context.Background(), other.ID); len(others) != 0 {
		t.Errorf("want no comments on the post named in the form, got %d", len(others))
	}

	rr = env.do(http.MethodPost, postURL(target.ID)+"comment/", url.Values{"text": {"  "}}, env.bobCookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for empty comment, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	rr = env.do(http.MethodPost, postURL(draft.ID)+"comment/", url.Values{"text": {"peek"}}, env.bobCookie)
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v for hidden post, got %v", http.StatusNotFound, rr.Code)
	}
	rr = env.do(http.MethodPost, postURL(draft.ID)+"comment/", url.Values{"text": {"note to self"}}, env.aliceCookie)
	wantRedirect(t, rr, http.StatusSeeOther, postURL(draft.ID))

	rr = env.do(http.MethodPost, "/posts/999/comment/", url.Values{"text": {"void"}}, env.bobCookie)
	if rr.Code != http.StatusNotFound {
		t.Errorf("want status code %v for missing post, got %v", http.StatusNotFound, rr.Code)
	}
}

func TestAPI_editAndDeleteComment(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})
	c := env.comment(t, storage.Comment{PostID: p.ID, AuthorID: env.bob.ID, Text: "First take"})
	path := "/comments/" + strconv.FormatInt(c.ID, 10) + "/"

	rr := env.do(http.MethodGet, path+"edit/", nil, env.bobCookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "First take") {
		t.Fatalf("want edit form with comment text, got status %v", rr.Code)
	}

	rr = env.do(http.MethodPost, path+"edit/", url.Values{"text": {""}}, env.bobCookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	rr = env.do(http.MethodPost, path+"edit/", url.Values{"text": {"Second take"}}, env.bobCookie)
	wantRedirect(t, rr, http.StatusSeeOther, postURL(p.ID))
	got, err := env.db.Comment(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "Second take" {
		t.Errorf("want text %q, got %q", "Second take", got.Text)
	}

	rr = env.do(http.MethodPost, path+"delete/", url.Values{}, env.bobCookie)
	wantRedirect(t, rr, http.StatusSeeOther, postURL(p.ID))
	if _, err := env.db.Comment(context.Background(), c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want comment deleted, got %v", err)
	}
}

func TestAPI_editProfileHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/profile/edit/", nil, env.aliceCookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="alice"`) {
		t.Fatalf("want profile form for alice, got status %v", rr.Code)
	}

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
	}{
		{name: "reserved username", form: url.Values{"username": {"edit"}}, wantCode: http.StatusUnprocessableEntity},
		{name: "taken username", form: url.Values{"username": {"bob"}}, wantCode: http.StatusUnprocessableEntity},
		{name: "invalid characters", form: url.Values{"username": {"al ice"}}, wantCode: http.StatusUnprocessableEntity},
		{name: "invalid email", form: url.Values{"username": {"alice"}, "email": {"not-an-email"}}, wantCode: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/profile/edit/", tt.form, env.aliceCookie)
			if rr.Code != tt.wantCode {
				t.Errorf("want status code %v, got status code %v", tt.wantCode, rr.Code)
			}
		})
	}

	form := url.Values{
		"username":   {"alice.w"},
		"first_name": {"Alice"},
		"last_name":  {"Wonder"},
		"email":      {"alice@example.com"},
	}
	rr = env.do(http.MethodPost, "/profile/edit/", form, env.aliceCookie)
	wantRedirect(t, rr, http.StatusSeeOther, "/profile/edit/")

	got, err := env.db.User(context.Background(), env.alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice.w" || got.FullName() != "Alice Wonder" || got.Email != "alice@example.com" {
		t.Errorf("unexpected user after edit %+v", got)
	}
	if got.PasswordHash != env.alice.PasswordHash {
		t.Errorf("want password hash kept")
	}
}

func TestAPI_authFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/auth/registration/", url.Values{
		"username":  {"carol"},
		"email":     {"carol@example.com"},
		"password1": {"secret-pass"},
		"password2": {"other-pass"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for mismatched passwords, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	rr = env.do(http.MethodPost, "/auth/registration/", url.Values{
		"username":  {"carol"},
		"password1": {"short"},
		"password2": {"short"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for short password, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	rr = env.do(http.MethodPost, "/auth/registration/", url.Values{
		"username":  {"carol"},
		"email":     {"carol@example.com"},
		"password1": {"secret-pass"},
		"password2": {"secret-pass"},
	}, nil)
	wantRedirect(t, rr, http.StatusSeeOther, "/auth/login/")

	rr = env.do(http.MethodPost, "/auth/login/", url.Values{"username": {"carol"}, "password": {"wrong-pass"}}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for wrong password, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	tests := []struct {
		name string
		next string
		want string
	}{
		{name: "local next", next: "/posts/new/", want: "/posts/new/"},
		{name: "no next", next: "", want: "/profile/carol/"},
		{name: "foreign next", next: "//evil.example.com/", want: "/profile/carol/"},
		{name: "absolute next", next: "https://evil.example.com/", want: "/profile/carol/"},
	}
	var cookie *http.Cookie
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/auth/login/", url.Values{
				"username": {"carol"},
				"password": {"secret-pass"},
				"next":     {tt.next},
			}, nil)
			wantRedirect(t, rr, http.StatusSeeOther, tt.want)
			for _, c := range rr.Result().Cookies() {
				if c.Name == sessionCookie && c.Value != "" {
					cookie = c
				}
			}
		})
	}
	if cookie == nil {
		t.Fatal("want session cookie after login")
	}

	rr = env.do(http.MethodGet, "/posts/new/", nil, cookie)
	if rr.Code != http.StatusOK {
		t.Errorf("want status code %v with session cookie, got %v", http.StatusOK, rr.Code)
	}

	rr = env.do(http.MethodPost, "/auth/logout/", url.Values{}, cookie)
	wantRedirect(t, rr, http.StatusSeeOther, "/")
	if _, err := env.db.Session(context.Background(), cookie.Value); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want session removed after logout, got %v", err)
	}
}

func TestAPI_censor(t *testing.T) {
	env := newTestEnv(t)
	c, err := censor.New([]censor.Word{{Text: "spam", Pattern: `^spam`}})
	if err != nil {
		t.Fatal(err)
	}
	env.api.Censor = c
	p := env.post(t, storage.Post{Title: "Post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})

	rr := env.do(http.MethodPost, postURL(p.ID)+"comment/", url.Values{"text": {"buy spam today"}}, env.bobCookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for banned comment, got %v", http.StatusUnprocessableEntity, rr.Code)
	}
	if comments, _ := env.db.Comments(context.Background(), p.ID); len(comments) != 0 {
		t.Errorf("want banned comment rejected, got %d comments", len(comments))
	}

	form := url.Values{"title": {"Spam offer"}, "text": {"Body"}, "pub_date": {"2025-09-28T10:00"}}
	rr = env.do(http.MethodPost, "/posts/new/", form, env.aliceCookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("want status code %v for banned title, got %v", http.StatusUnprocessableEntity, rr.Code)
	}

	rr = env.do(http.MethodPost, postURL(p.ID)+"comment/", url.Values{"text": {"lovely post"}}, env.bobCookie)
	wantRedirect(t, rr, http.StatusSeeOther, postURL(p.ID))
}

func TestAPI_methodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	p := env.post(t, storage.Post{Title: "Post", IsPublished: true, PubDate: testNow.Add(-time.Hour)})

	rr := env.do(http.MethodDelete, postURL(p.ID), nil, env.aliceCookie)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("want status code %v, got status code %v", http.StatusMethodNotAllowed, rr.Code)
	}
	rr = env.do(http.MethodGet, "/auth/logout/", nil, env.aliceCookie)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("want status code %v, got status code %v", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		next string
		want bool
	}{
		{next: "/posts/1/", want: true},
		{next: "", want: false},
		{next: "//evil.example.com", want: false},
		{next: `/\evil.example.com`, want: false},
		{next: "http://evil.example.com", want: false},
	}
	for _, tt := range tests {
		if got := isLocalPath(tt.next); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.next, got, tt.want)
		}
	}
}

// failingStore breaks post listing and leaves everything else to Storage.
type failingStore struct {
	storage.Storage
}

func (failingStore) Posts(ctx context.Context, q storage.PostQuery) ([]storage.Post, int, error) {
	return nil, 0, errors.New("connection reset")
}

func TestAPI_serverError(t *testing.T) {
	env := newTestEnv(t)
	env.api.DB = failingStore{Storage: env.db}

	rr := env.do(http.MethodGet, "/", nil, env.aliceCookie)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("want status code %v, got status code %v", http.StatusInternalServerError, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("want html content type, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Something went wrong") || !strings.Contains(body, "<title>Server error | Blogicum</title>") {
		t.Errorf("want rendered error page, got %q", body)
	}
}

func TestAPI_staticPages(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		want string
	}{
		{path: "/pages/about/", want: "About Blogicum"},
		{path: "/pages/rules/", want: "<h1>Rules</h1>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, nil, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("want status code %v, got status code %v", http.StatusOK, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("want body to contain %q", tt.want)
			}
		})
	}
}

func TestCheckUsername(t *testing.T) {
	tests := []struct {
		username string
		wantOK   bool
	}{
		{username: "alice", wantOK: true},
		{username: "a.b", wantOK: true},
		{username: "..a", wantOK: true},
		{username: ".", wantOK: false},
		{username: "..", wantOK: false},
		{username: "...", wantOK: false},
		{username: "Edit", wantOK: false},
		{username: "bad name", wantOK: false},
		{username: "", wantOK: false},
	}
	for _, tt := range tests {
		if got := checkUsername(tt.username) == ""; got != tt.wantOK {
			t.Errorf("checkUsername(%q) ok = %v, want %v", tt.username, got, tt.wantOK)
		}
	}
}

func TestAPI_registrationRejectsDotUsername(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {".."}, "password1": {"password123"}, "password2": {"password123"}}
	rr := env.do(http.MethodPost, "/auth/registration/", form, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want status code %v, got status code %v", http.StatusUnprocessableEntity, rr.Code)
	}
	if _, err := env.db.UserByUsername(context.Background(), ".."); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want no user stored, got %v", err)
	}
}
