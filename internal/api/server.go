// Package api serves the operational HTTP surface of logalertd:
// health, Prometheus metrics, recent alert history, and pipeline stats.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/history"
	"github.com/good-yellow-bee/logalert/internal/notifier"
)

// Server is the status HTTP server.
type Server struct {
	server  *http.Server
	addr    string
	engine  *alerting.Engine
	sender  *notifier.Sender
	history *history.Store
	verbose bool
}

// NewServer creates a status server. history may be nil when the
// history store is disabled.
func NewServer(addr string, engine *alerting.Engine, sender *notifier.Sender, hist *history.Store, verbose bool) *Server {
	s := &Server{
		addr:    addr,
		engine:  engine,
		sender:  sender,
		history: hist,
		verbose: verbose,
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/alerts/recent", s.handleRecent)
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start starts the status server.
func (s *Server) Start() error {
	log.Printf("status server listening on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the status server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("shutting down status server")
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verbose {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statsResponse is the /api/v1/stats payload.
type statsResponse struct {
	Engine            alerting.EngineStatsSnapshot `json:"engine"`
	Sender            notifier.SenderStatsSnapshot `json:"sender"`
	MissingHeartbeats int                          `json:"missing_heartbeats"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Engine:            s.engine.Stats(),
		Sender:            s.sender.Stats(),
		MissingHeartbeats: s.engine.MissingHeartbeats(),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "alert history is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("error listing alert history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list alert history")
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": entries})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
