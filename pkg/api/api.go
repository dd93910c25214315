// Package api serves the blog pages: feeds, post details, authoring forms,
// comments, profiles and the login flow.
package api

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"

	"blogicum/pkg/censor"
	"blogicum/pkg/storage"
)

const sessionCookie = "sessionid"

type API struct {
	ServiceName string
	DB          storage.Storage
	Router      *mux.Router
	// Now returns the current time. It is called once per request and never cached.
	Now func() time.Time
	// Censor rejects posts and comments with banned words. Nil disables the check.
	Censor *censor.Censor

	kw    *kafka.Writer
	pages map[string]*template.Template
}

func New(name string, db storage.Storage, kafkaWriter *kafka.Writer) (*API, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	api := API{
		ServiceName: name,
		DB:          db,
		Router:      mux.NewRouter(),
		Now:         time.Now,
		kw:          kafkaWriter,
		pages:       pages,
	}
	api.endpoints()

	return &api, nil
}

func (api *API) endpoints() {
	api.Router.Use(api.requestIDMiddleware)
	api.Router.Use(api.headerMiddleware)
	api.Router.Use(api.sessionMiddleware)
	api.Router.Use(api.loggingMiddleware)

	api.Router.NotFoundHandler = http.HandlerFunc(api.notFound)

	get := []string{http.MethodGet}
	form := []string{http.MethodGet, http.MethodPost}

	api.Router.HandleFunc("/", api.indexHandler).Methods(get...)
	api.Router.HandleFunc("/category/{slug}/", api.categoryHandler).Methods(get...)
	api.Router.Handle("/profile/edit/", api.loginRequired(http.HandlerFunc(api.editProfileHandler))).Methods(form...)
	api.Router.HandleFunc("/profile/{username}/", api.profileHandler).Methods(get...)

	api.Router.Handle("/posts/new/", api.loginRequired(http.HandlerFunc(api.createPostHandler))).Methods(form...)
	api.Router.HandleFunc("/posts/{id:[0-9]+}/", api.postDetailHandler).Methods(get...)
	api.Router.Handle("/posts/{id:[0-9]+}/edit/",
		api.loginRequired(ownerOnly(api, api.DB.Post, postOfPost, api.editPostHandler))).Methods(form...)
	api.Router.Handle("/posts/{id:[0-9]+}/delete/",
		api.loginRequired(ownerOnly(api, api.DB.Post, postOfPost, api.deletePostHandler))).Methods(form...)
	api.Router.Handle("/posts/{id:[0-9]+}/comment/",
		api.loginRequired(http.HandlerFunc(api.addCommentHandler))).Methods(http.MethodPost)

	api.Router.Handle("/comments/{id:[0-9]+}/edit/",
		api.loginRequired(ownerOnly(api, api.DB.Comment, postOfComment, api.editCommentHandler))).Methods(form...)
	api.Router.Handle("/comments/{id:[0-9]+}/delete/",
		api.loginRequired(ownerOnly(api, api.DB.Comment, postOfComment, api.deleteCommentHandler))).Methods(form...)

	api.Router.HandleFunc("/auth/login/", api.loginHandler).Methods(form...)
	api.Router.HandleFunc("/auth/logout/", api.logoutHandler).Methods(http.MethodPost)
	api.Router.HandleFunc("/auth/registration/", api.registrationHandler).Methods(form...)

	api.Router.HandleFunc("/pages/about/", api.staticPage("about")).Methods(get...)
	api.Router.HandleFunc("/pages/rules/", api.staticPage("rules")).Methods(get...)
}

func postOfPost(p storage.Post) int64       { return p.ID }
func postOfComment(c storage.Comment) int64 { return c.PostID }

func postURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}

func profileURL(username string) string {
	return "/profile/" + username + "/"
}

// pathID parses the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// pageNumber parses the page query parameter. Missing or malformed values mean the first page.
func pageNumber(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
