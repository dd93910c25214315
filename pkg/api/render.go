package api

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Files shared by every page.
var baseTemplates = []string{"templates/layout.html", "templates/partials.html"}

const (
	displayDate = "2 January 2006, 15:04"
	inputDate   = "2006-01-02T15:04"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(displayDate) },
	"paragraphs": func(s string) []string {
		return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	},
}

// parseTemplates builds one template set per page so that every page can
// define its own "title" and "content" blocks on top of the shared layout.
func parseTemplates() (map[string]*template.Template, error) {
	files, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, file := range files {
		if file == baseTemplates[0] || file == baseTemplates[1] {
			continue
		}
		patterns := append([]string{file}, baseTemplates...)
		t, err := template.New("layout").Funcs(funcs).ParseFS(templatesFS, patterns...)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".html")
		pages[name] = t
	}

	return pages, nil
}

// render executes page with data into a buffer and writes it with status.
// The current user is always available to templates as .User.
func (api *API) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	sID := shorten(GetRequestID(r.Context()))

	t, ok := api.pages[page]
	if !ok {
		log.Errorf("[render][%s] unknown page %q", sID, page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = make(map[string]any)
	}
	data["User"] = auth.UserFrom(r.Context())

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Errorf("[render][%s] failed to render page %q: %v", sID, page, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debugf("[render][%s] failed to write response: %v", sID, err)
	}
}

func (api *API) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	api.render(w, r, http.StatusNotFound, "404", nil)
}

func (api *API) serverError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	log.Errorf("[%s][%s] %v", handler, shorten(GetRequestID(r.Context())), err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	api.render(w, r, http.StatusInternalServerError, "500", nil)
}
