package api

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
	"blogicum/pkg/storage"
)

func (api *API) editProfileHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user := *auth.UserFrom(r.Context())

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "profile_edit", map[string]any{"Form": newProfileForm(user)})
		return
	}

	form := parseProfileForm(r)
	if !form.valid() {
		log.Debugf("[editProfileHandler][%s] invalid form: %v", sID, form.Errors)
		api.render(w, r, http.StatusUnprocessableEntity, "profile_edit", map[string]any{"Form": form})
		return
	}

	form.apply(&user)
	err := api.DB.UpdateUser(r.Context(), user)
	if errors.Is(err, storage.ErrUsernameTaken) {
		form.Errors["username"] = "A user with that username already exists."
		api.render(w, r, http.StatusUnprocessableEntity, "profile_edit", map[string]any{"Form": form})
		return
	}
	if err != nil {
		api.serverError(w, r, "editProfileHandler", err)
		return
	}

	log.Infof("[editProfileHandler][%s] user ID:%d updated profile", sID, user.ID)
	http.Redirect(w, r, "/profile/edit/", http.StatusSeeOther)
}

func (api *API) registrationHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		api.render(w, r, http.StatusOK, "registration", map[string]any{"Form": registrationForm{}})
		return
	}

	form := parseRegistrationForm(r)
	if form.valid() {
		_, err := auth.Register(r.Context(), api.DB, storage.User{Username: form.Username, Email: form.Email}, form.Password1)
		switch {
		case err == nil:
			log.Infof("[registrationHandler][%s] registered user %q", sID, form.Username)
			http.Redirect(w, r, "/auth/login/", http.StatusSeeOther)
			return
		case errors.Is(err, storage.ErrUsernameTaken):
			form.Errors["username"] = "A user with that username already exists."
		case errors.Is(err, auth.ErrWeakPassword):
			form.Errors["password1"] = "This password is too short. It must contain at least 8 characters."
		default:
			api.serverError(w, r, "registrationHandler", err)
			return
		}
	}

	form.Password1, form.Password2 = "", ""
	log.Debugf("[registrationHandler][%s] invalid form: %v", sID, form.Errors)
	api.render(w, r, http.StatusUnprocessableEntity, "registration", map[string]any{"Form": form})
}

func (api *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if r.Method == http.MethodGet {
		data := map[string]any{"Next": r.URL.Query().Get("next"), "Username": "", "Error": ""}
		api.render(w, r, http.StatusOK, "login", data)
		return
	}

	username := r.PostFormValue("username")
	next := r.PostFormValue("next")

	sess, err := auth.Login(r.Context(), api.DB, username, r.PostFormValue("password"), api.Now())
	if errors.Is(err, auth.ErrInvalidLogin) {
		data := map[string]any{
			"Next":     next,
			"Username": username,
			"Error":    "Please enter a correct username and password.",
		}
		api.render(w, r, http.StatusUnprocessableEntity, "login", data)
		return
	}
	if err != nil {
		api.serverError(w, r, "loginHandler", err)
		return
	}

	setSessionCookie(w, sess)
	log.Infof("[loginHandler][%s] user ID:%d logged in", sID, sess.UserID)

	if !isLocalPath(next) {
		next = profileURL(strings.TrimSpace(username))
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (api *API) logoutHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := auth.Logout(r.Context(), api.DB, cookie.Value); err != nil {
			log.Errorf("[logoutHandler][%s] failed to delete session: %v", sID, err)
		}
	}

	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// isLocalPath reports whether next points into this site.
func isLocalPath(next string) bool {
	if !strings.HasPrefix(next, "/") {
		return false
	}
	return !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\")
}
