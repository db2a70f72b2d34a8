// Package api serves the preview surface: a small local HTTP server
// for inspecting a converted document before committing to a deck.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stahldeck/stahldeck/internal/pipeline"
)

// Server exposes a completed pipeline result over HTTP.
type Server struct {
	router chi.Router
	result *pipeline.Result
	log    *slog.Logger
}

// NewServer wraps a frozen pipeline result. The result is read-only,
// so handlers serve it without locking.
func NewServer(result *pipeline.Result, log *slog.Logger) *Server {
	s := &Server{result: result, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/tree", s.handleTree)
	r.Get("/api/report", s.handleReport)
	r.Get("/api/cards", s.handleListCards)
	r.Get("/api/cards/{id}", s.handleGetCard)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
