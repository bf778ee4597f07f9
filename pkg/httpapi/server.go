// Package httpapi exposes a read-only HTTP snapshot of enforcement state:
// current graph, watermark, and a liveness probe. It never accepts writes
// and is not the host's tool transport. Dependency direction is strictly
// one-way: this package imports pkg/enforcement; pkg/enforcement must never
// import this package.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/provenance-core/pkg/enforcement"
	"github.com/openclaw/provenance-core/pkg/watermark"
)

// Server is the read-only debug HTTP surface.
type Server struct {
	driver     *enforcement.Driver
	watermarks *watermark.Store
	router     chi.Router
}

// New builds a Server. driver and watermarks must both be non-nil.
func New(driver *enforcement.Driver, watermarks *watermark.Store) *Server {
	s := &Server{driver: driver, watermarks: watermarks}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Get("/watermark", s.handleWatermark)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	summary, ok := s.driver.GraphSummary(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "no graph for this session")
		return
	}
	respondJSON(w, summary)
}

func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	entry, ok := s.watermarks.Get(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "no watermark entry for this session")
		return
	}
	respondJSON(w, entry)
}
