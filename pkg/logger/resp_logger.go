// Package logger records what a handler wrote so middleware can report it afterwards.
package logger

import "net/http"

// ResponseLogger wraps a ResponseWriter and remembers the status code and body size.
type ResponseLogger struct {
	w      http.ResponseWriter
	status int
	size   int
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

func (l *ResponseLogger) WriteHeader(code int) {
	l.status = code
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	n, err := l.w.Write(b)
	l.size += n
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *ResponseLogger) Status() int {
	return l.status
}

// Size returns the number of body bytes written so far.
func (l *ResponseLogger) Size() int {
	return l.size
}
