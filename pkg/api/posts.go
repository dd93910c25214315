package api

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
	"blogicum/pkg/storage"
)

func (api *API) createPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user := auth.UserFrom(r.Context())

	if r.Method == http.MethodGet {
		form := newPostForm(storage.Post{PubDate: api.Now(), IsPublished: true})
		api.renderPostForm(w, r, http.StatusOK, nil, form)
		return
	}

	cats, locs, err := api.choices(r)
	if err != nil {
		api.serverError(w, r, "createPostHandler", err)
		return
	}

	form := parsePostForm(r)
	post := storage.Post{AuthorID: user.ID}
	if !form.apply(&post, cats, locs, api.Censor) {
		log.Debugf("[createPostHandler][%s] invalid form: %v", sID, form.Errors)
		api.renderPostForm(w, r, http.StatusUnprocessableEntity, nil, form)
		return
	}

	post, err = api.DB.AddPost(r.Context(), post)
	if err != nil {
		api.serverError(w, r, "createPostHandler", err)
		return
	}

	log.Infof("[createPostHandler][%s] user ID:%d created post ID:%d", sID, user.ID, post.ID)
	http.Redirect(w, r, profileURL(user.Username), http.StatusSeeOther)
}

func (api *API) editPostHandler(w http.ResponseWriter, r *http.Request, post storage.Post) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		api.renderPostForm(w, r, http.StatusOK, &post, newPostForm(post))
		return
	}

	cats, locs, err := api.choices(r)
	if err != nil {
		api.serverError(w, r, "editPostHandler", err)
		return
	}

	form := parsePostForm(r)
	if !form.apply(&post, cats, locs, api.Censor) {
		log.Debugf("[editPostHandler][%s] invalid form: %v", sID, form.Errors)
		api.renderPostForm(w, r, http.StatusUnprocessableEntity, &post, form)
		return
	}

	err = api.DB.UpdatePost(r.Context(), post)
	if errors.Is(err, storage.ErrNotFound) {
		api.notFound(w, r)
		return
	}
	if err != nil {
		api.serverError(w, r, "editPostHandler", err)
		return
	}

	log.Infof("[editPostHandler][%s] post ID:%d updated", sID, post.ID)
	http.Redirect(w, r, profileURL(auth.UserFrom(r.Context()).Username), http.StatusSeeOther)
}

func (api *API) deletePostHandler(w http.ResponseWriter, r *http.Request, post storage.Post) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "post_delete", map[string]any{"Post": post})
		return
	}

	err := api.DB.DeletePost(r.Context(), post.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		api.serverError(w, r, "deletePostHandler", err)
		return
	}

	log.Infof("[deletePostHandler][%s] post ID:%d deleted", sID, post.ID)
	http.Redirect(w, r, profileURL(auth.UserFrom(r.Context()).Username), http.StatusSeeOther)
}

// choices returns the categories and locations a post may reference.
func (api *API) choices(r *http.Request) ([]storage.Category, []storage.Location, error) {
	cats, err := api.DB.Categories(r.Context())
	if err != nil {
		return nil, nil, err
	}
	locs, err := api.DB.Locations(r.Context())
	if err != nil {
		return nil, nil, err
	}
	return cats, locs, nil
}

// renderPostForm shows the create form when post is nil and the edit form otherwise.
func (api *API) renderPostForm(w http.ResponseWriter, r *http.Request, status int, post *storage.Post, form postForm) {
	cats, locs, err := api.choices(r)
	if err != nil {
		api.serverError(w, r, "renderPostForm", err)
		return
	}

	action := "/posts/new/"
	if post != nil {
		action = postURL(post.ID) + "edit/"
	}
	data := map[string]any{
		"Post":       post,
		"Form":       form,
		"Categories": cats,
		"Locations":  locs,
		"Action":     action,
	}
	api.render(w, r, status, "post_form", data)
}
