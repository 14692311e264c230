// Package api exposes the HTTP surface: analysis scheduling, the live
// progress stream, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/analysis"
	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/metrics"
	"github.com/onebitebitcoin/zentel/internal/progress"
)

// Config wires the HTTP server.
type Config struct {
	Scheduler      *analysis.Scheduler
	Hub            *progress.Hub
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server is the chi-backed HTTP handler.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router chi.Router
}

// NewServer builds the router. The SSE stream is mounted outside the timeout
// middleware; those connections stay open for the client's lifetime.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{cfg: cfg, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Post("/v1/memos/{id}/analyze", s.handleAnalyze)
		r.Post("/v1/memos/{id}/reanalyze", s.handleReanalyze)
		r.Get("/healthz", s.handleHealth)
	})

	r.Get("/v1/events", s.handleEvents)
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	memoID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")

	err := s.cfg.Scheduler.Schedule(r.Context(), memoID, userID)
	switch {
	case errors.Is(err, analysis.ErrQueueFull):
		s.writeError(w, http.StatusTooManyRequests, "analysis queue is full, try again later")
	case errors.Is(err, analysis.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"memo_id": memoID, "status": "scheduled"})
	}
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	memoID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	force := r.URL.Query().Get("force") == "true"

	err := s.cfg.Scheduler.Reanalyze(r.Context(), memoID, userID, force)
	switch {
	case errors.Is(err, memo.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "memo not found")
	case errors.Is(err, analysis.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, "analysis already in progress")
	case errors.Is(err, analysis.ErrQueueFull):
		s.writeError(w, http.StatusTooManyRequests, "analysis queue is full, try again later")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"memo_id": memoID, "status": "scheduled"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Shutdown is a hook point for draining long-lived connections; the SSE
// handlers exit when the hub closes their channels.
func (s *Server) Shutdown(context.Context) error { return nil }
