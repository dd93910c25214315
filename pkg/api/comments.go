package api

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
	"blogicum/pkg/storage"
)

// addCommentHandler attaches a comment to the post from the path. A post
// value in the submitted form is ignored.
func (api *API) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user := auth.UserFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		api.notFound(w, r)
		return
	}

	post, ok := api.visiblePost(w, r, "addCommentHandler", id)
	if !ok {
		return
	}

	form := parseCommentForm(r)
	if !form.valid(api.Censor) {
		log.Debugf("[addCommentHandler][%s] invalid form: %v", sID, form.Errors)
		api.renderDetail(w, r, http.StatusUnprocessableEntity, post, form)
		return
	}

	c, err := api.DB.AddComment(r.Context(), storage.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Text:     form.Text,
		Created:  api.Now(),
	})
	if errors.Is(err, storage.ErrNotFound) {
		api.notFound(w, r)
		return
	}
	if err != nil {
		api.serverError(w, r, "addCommentHandler", err)
		return
	}

	log.Infof("[addCommentHandler][%s] user ID:%d commented post ID:%d, comment ID:%d", sID, user.ID, post.ID, c.ID)
	http.Redirect(w, r, postURL(post.ID), http.StatusSeeOther)
}

func (api *API) editCommentHandler(w http.ResponseWriter, r *http.Request, c storage.Comment) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		form := commentForm{Text: c.Text}
		api.render(w, r, http.StatusOK, "comment_form", map[string]any{"Comment": c, "Form": form})
		return
	}

	form := parseCommentForm(r)
	if !form.valid(api.Censor) {
		log.Debugf("[editCommentHandler][%s] invalid form: %v", sID, form.Errors)
		api.render(w, r, http.StatusUnprocessableEntity, "comment_form", map[string]any{"Comment": c, "Form": form})
		return
	}

	c.Text = form.Text
	err := api.DB.UpdateComment(r.Context(), c)
	if errors.Is(err, storage.ErrNotFound) {
		api.notFound(w, r)
		return
	}
	if err != nil {
		api.serverError(w, r, "editCommentHandler", err)
		return
	}

	log.Infof("[editCommentHandler][%s] comment ID:%d updated", sID, c.ID)
	http.Redirect(w, r, postURL(c.PostID), http.StatusSeeOther)
}

func (api *API) deleteCommentHandler(w http.ResponseWriter, r *http.Request, c storage.Comment) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "comment_delete", map[string]any{"Comment": c})
		return
	}

	err := api.DB.DeleteComment(r.Context(), c.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		api.serverError(w, r, "deleteCommentHandler", err)
		return
	}

	log.Infof("[deleteCommentHandler][%s] comment ID:%d deleted", sID, c.ID)
	http.Redirect(w, r, postURL(c.PostID), http.StatusSeeOther)
}
