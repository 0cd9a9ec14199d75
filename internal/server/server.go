package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/model"
	"github.com/ogulcanaydogan/Azure-Budget-Guardian/pkg/storage"
)

// Server provides health, metrics and run history endpoints for schedule mode.
type Server struct {
	metrics http.Handler
	journal storage.Journal
	mux     *http.ServeMux
	logger  *slog.Logger

	mu      sync.RWMutex
	lastRun *model.RunSummary
}

// NewServer creates an API server. metrics and journal may be nil.
func NewServer(metrics http.Handler, journal storage.Journal, logger *slog.Logger) *Server {
	s := &Server{
		metrics: metrics,
		journal: journal,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/last-run", s.handleLastRun)
	s.mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ObserveRun remembers the most recent run summary.
func (s *Server) ObserveRun(summary *model.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = summary
}

func (s *Server) last() *model.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok"}
	if last := s.last(); last != nil {
		resp["last_run_status"] = string(last.Status)
		resp["last_run_finished_at"] = last.FinishedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	last := s.last()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run journal is disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.journal.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
