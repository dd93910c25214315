package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
	"blogicum/pkg/blog"
	"blogicum/pkg/storage"
)

func (api *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	api.feed(w, r, "indexHandler", "index", blog.All())
}

func (api *API) categoryHandler(w http.ResponseWriter, r *http.Request) {
	api.feed(w, r, "categoryHandler", "category", blog.InCategory(mux.Vars(r)["slug"]))
}

func (api *API) profileHandler(w http.ResponseWriter, r *http.Request) {
	api.feed(w, r, "profileHandler", "profile", blog.ByAuthor(mux.Vars(r)["username"]))
}

// feed renders one page of the posts selected by scope.
func (api *API) feed(w http.ResponseWriter, r *http.Request, handler, page string, scope blog.Scope) {
	sID := shorten(GetRequestID(r.Context()))

	res, err := blog.Feed(r.Context(), api.DB, scope, api.Now(), pageNumber(r))
	if errors.Is(err, storage.ErrNotFound) {
		log.Debugf("[%s][%s] feed not found: %v", handler, sID, err)
		api.notFound(w, r)
		return
	}
	if err != nil {
		api.serverError(w, r, handler, err)
		return
	}

	user := auth.UserFrom(r.Context())
	data := map[string]any{
		"Page":  res,
		"Owner": res.Profile != nil && user != nil && user.ID == res.Profile.ID,
	}
	api.render(w, r, http.StatusOK, page, data)
	log.Debugf("[%s][%s] page %d of %d sent to: %v", handler, sID, res.CurrentPage, res.TotalPages, r.RemoteAddr)
}

func (api *API) postDetailHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	id, err := pathID(r)
	if err != nil {
		api.notFound(w, r)
		return
	}

	post, ok := api.visiblePost(w, r, "postDetailHandler", id)
	if !ok {
		return
	}

	api.renderDetail(w, r, http.StatusOK, post, commentForm{})
	log.Debugf("[postDetailHandler][%s] post ID:%d sent to: %v", sID, id, r.RemoteAddr)
}

// visiblePost loads the post and checks that the current user may see it.
// It writes the error response itself and reports false when the caller must stop.
func (api *API) visiblePost(w http.ResponseWriter, r *http.Request, handler string, id int64) (storage.Post, bool) {
	sID := shorten(GetRequestID(r.Context()))

	post, err := api.DB.Post(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		log.Debugf("[%s][%s] post ID:%d not found", handler, sID, id)
		api.notFound(w, r)
		return storage.Post{}, false
	}
	if err != nil {
		api.serverError(w, r, handler, err)
		return storage.Post{}, false
	}

	if !blog.VisibleTo(post, auth.UserFrom(r.Context()), api.Now()) {
		log.Debugf("[%s][%s] post ID:%d is hidden from the caller", handler, sID, id)
		api.notFound(w, r)
		return storage.Post{}, false
	}

	return post, true
}

func (api *API) renderDetail(w http.ResponseWriter, r *http.Request, status int, post storage.Post, form commentForm) {
	comments, err := api.DB.Comments(r.Context(), post.ID)
	if err != nil {
		api.serverError(w, r, "renderDetail", err)
		return
	}

	data := map[string]any{
		"Post":     post,
		"Comments": comments,
		"Form":     form,
	}
	api.render(w, r, status, "detail", data)
}
