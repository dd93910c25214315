package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gofrs/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"blogicum/pkg/accesslog"
	"blogicum/pkg/auth"
	"blogicum/pkg/blog"
	"blogicum/pkg/logger"
	"blogicum/pkg/storage"
)

type ctxKeyRequestID struct{}

var RequestIDKey = ctxKeyRequestID{}

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			reqID = id.String()
		}

		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware puts the user owning the session cookie into the request
// context. Requests without a valid session continue anonymously.
func (api *API) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sID := shorten(GetRequestID(r.Context()))
		user, err := auth.Authenticate(r.Context(), api.DB, cookie.Value, api.Now())
		switch {
		case errors.Is(err, auth.ErrNoSession):
			log.Debugf("[sessionMiddleware][%s] stale session cookie from %v", sID, r.RemoteAddr)
			clearSessionCookie(w)
		case err != nil:
			log.Errorf("[sessionMiddleware][%s] failed to load session: %v", sID, err)
		default:
			r = r.WithContext(auth.WithUser(r.Context(), user))
		}

		next.ServeHTTP(w, r)
	})
}

// loginRequired redirects anonymous callers to the login page and brings them
// back to the requested path afterwards.
func (api *API) loginRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFrom(r.Context()) == nil {
			sID := shorten(GetRequestID(r.Context()))
			log.Debugf("[loginRequired][%s] anonymous request to %s", sID, r.URL.Path)
			http.Redirect(w, r, "/auth/login/?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ownerOnly loads the resource named by the {id} route variable and hands it to
// next when the current user is its author. Anyone else is sent to the detail
// page of the post the resource belongs to and nothing is changed.
func ownerOnly[T blog.Owned](
	api *API,
	load func(ctx context.Context, id int64) (T, error),
	postOf func(T) int64,
	next func(w http.ResponseWriter, r *http.Request, res T),
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sID := shorten(GetRequestID(r.Context()))

		id, err := pathID(r)
		if err != nil {
			api.notFound(w, r)
			return
		}

		res, err := load(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			log.Debugf("[ownerOnly][%s] resource ID:%d not found", sID, id)
			api.notFound(w, r)
			return
		}
		if err != nil {
			api.serverError(w, r, "ownerOnly", err)
			return
		}

		if !blog.CanMutate(res, auth.UserFrom(r.Context())) {
			log.Debugf("[ownerOnly][%s] user is not the author of resource ID:%d", sID, id)
			http.Redirect(w, r, postURL(postOf(res)), http.StatusSeeOther)
			return
		}

		next(w, r, res)
	})
}

// loggingMiddleware reports every request to the debug log and, when a Kafka
// writer is configured, ships an accesslog.Entry to the access log topic.
func (api *API) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := logger.New(w)
		defer func() {
			entry := accesslog.Entry{
				Timestamp:  time.Now(),
				IP:         getClientIP(r),
				StatusCode: lw.Status(),
				RequestID:  GetRequestID(r.Context()),
				Method:     r.Method,
				Path:       r.URL.Path,
				Bytes:      lw.Size(),
				Duration:   time.Since(start).Seconds(),
				Service:    api.ServiceName,
			}
			if u := auth.UserFrom(r.Context()); u != nil {
				entry.UserID = u.ID
			}
			log.Debugf("[LoggingMiddleware][%s] %s %s %d %.3fs",
				shorten(entry.RequestID), entry.Method, entry.Path, entry.StatusCode, entry.Duration)

			if api.kw == nil {
				return
			}
			jsonEntry, err := json.Marshal(entry)
			if err != nil {
				log.Errorf("[LoggingMiddleware] failed to marshal log entry for request %s", entry.RequestID)
				return
			}
			err = api.kw.WriteMessages(r.Context(), kafka.Message{Value: jsonEntry})
			if err != nil {
				log.Errorf("[LoggingMiddleware] failed to write log to Kafka: %v", err)
				return
			}
		}()

		next.ServeHTTP(lw, r)
	})
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	return ip
}

func setSessionCookie(w http.ResponseWriter, sess storage.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.Expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
