// Package web exposes the overlay monitor's counters and connection state
// as an HTML page and a JSON document.
package web

import (
	"context"
	"net/http"

	"github.com/sweeney/status-overlay/internal/status"
)

// Server renders tracker snapshots. Each request takes a fresh snapshot.
type Server struct {
	tracker *status.Tracker
	mux     *http.ServeMux
	http    *http.Server
}

// New builds a Server bound to addr. Nothing listens until ListenAndServe.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.page)
	s.mux.HandleFunc("/index.json", s.document)
	s.http = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// Handler returns the routes without a listener, for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func readOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

// page serves / and /index.html; any other path under / is a 404.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
	default:
		http.NotFound(w, r)
		return
	}
	if !readOnly(w, r) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	if !readOnly(w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}
