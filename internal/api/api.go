// Package api provides the quorum server's HTTP API: run inspection and a
// live progress event stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/kamilpajak/quorum/internal/auth"
	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/progress"
)

// RunStore is the slice of the database layer the API reads from.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*database.RepairRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]database.RepairRun, error)
}

// Server is the API server.
type Server struct {
	store    RunStore
	verifier *auth.Verifier // nil = unauthenticated (local use)
	hub      *progress.Hub
	mux      *http.ServeMux
}

// Config holds API server configuration.
type Config struct {
	Store    RunStore
	Verifier *auth.Verifier
	Hub      *progress.Hub
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:    cfg.Store,
		verifier: cfg.Verifier,
		hub:      cfg.Hub,
		mux:      http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Public endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Protected endpoints
	s.mux.HandleFunc("GET /api/runs", s.withAuth(s.handleListRuns))
	s.mux.HandleFunc("GET /api/runs/{runID}", s.withAuth(s.handleGetRun))
	s.mux.HandleFunc("GET /api/events", s.withAuth(s.handleEvents))
}

// withAuth wraps a handler with bearer-token verification when a verifier
// is configured. A server without a verifier serves everything openly,
// which is the local single-user mode.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	if s.verifier == nil {
		return handler
	}
	middleware := auth.Middleware(s.verifier)
	return func(w http.ResponseWriter, r *http.Request) {
		middleware(handler).ServeHTTP(w, r)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
