package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseLogger(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantSize   int
	}{
		{
			name: "implicit OK",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("hello"))
			},
			wantStatus: http.StatusOK,
			wantSize:   5,
		},
		{
			name: "redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/auth/login/", http.StatusFound)
			},
			wantStatus: http.StatusFound,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("nope"))
			},
			wantStatus: http.StatusNotFound,
			wantSize:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			lw := New(rr)
			tt.handler(lw, httptest.NewRequest(http.MethodGet, "/", nil))

			if lw.Status() != tt.wantStatus {
				t.Errorf("want status %d, got %d", tt.wantStatus, lw.Status())
			}
			if rr.Code != tt.wantStatus {
				t.Errorf("want recorded status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantSize != 0 && lw.Size() != tt.wantSize {
				t.Errorf("want size %d, got %d", tt.wantSize, lw.Size())
			}
		})
	}
}
