// Package server exposes a read-only HTTP API for inspecting the store
// while sweeps run elsewhere.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbeswick/thingsweep/internal/store"
)

// Server provides the inspection HTTP API.
type Server struct {
	store store.Store
	port  int
}

// New creates a new HTTP server.
func New(s store.Store, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, port: port}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/api/v1/query", s.handleQuery)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats reports per-table row counts and the resume position.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := map[string]any{"counts": counts}
	if lastID, ok, err := s.store.LastIngestedID(r.Context()); err == nil && ok {
		resp["last_ingested_id"] = lastID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQuery runs a SELECT statement passed in the sql query param.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	stmt := r.URL.Query().Get("sql")
	if stmt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing sql parameter"})
		return
	}

	result, err := s.store.Query(r.Context(), stmt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": result.Columns,
		"rows":    result.Rows,
		"count":   len(result.Rows),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
