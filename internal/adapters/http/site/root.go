// Package site serves the embedded stylesheet and other static assets.
package site

import (
	"context"
	"net/http"
)

// Prefix is the URL path static assets are served under.
const Prefix = "/static/"

// Register attaches the static asset routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle(Prefix, http.StripPrefix(Prefix, NewStaticHandler()))
}

// StaticHandler serves embedded files with a long cache lifetime.
type StaticHandler struct {
	files http.Handler
}

// NewStaticHandler creates a new static asset handler.
func NewStaticHandler() *StaticHandler {
	return &StaticHandler{files: http.FileServer(FS())}
}

// ServeHTTP serves GET and HEAD requests; directory listings are hidden.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	h.files.ServeHTTP(w, r)
}
