package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendorhub/internal/util"
	"vendorhub/pkg/queue"
)

// JobLookup reads delivery state for a queued notification.
type JobLookup interface {
	GetJob(ctx context.Context, jobID string) (queue.Job, bool, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Jobs      JobLookup
	JobsToken string
}

// Server exposes health, metrics and job status for the notifier.
type Server struct {
	jobs      JobLookup
	jobsToken string
	router    chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("job lookup required")
	}
	s := &Server{jobs: cfg.Jobs, jobsToken: strings.TrimSpace(cfg.JobsToken)}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(util.WithRequestID, util.WithRequestLog("notifier"), util.WithSecurityHeaders)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	// job payloads carry recipient addresses; without a token the route is not mounted
	if s.jobsToken != "" {
		r.Get("/jobs/{id}", s.withToken(s.handleJob))
	}
	s.router = r
}

func (s *Server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.jobsToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("job lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
