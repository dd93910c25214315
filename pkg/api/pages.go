package api

import "net/http"

// staticPage serves a template that needs no data.
func (api *API) staticPage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.render(w, r, http.StatusOK, page, nil)
	}
}
