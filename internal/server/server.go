// Package server provides the HTTP API of the matching service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/filtering"
	"github.com/spigell/mentormatch/internal/metrics"
	"github.com/spigell/mentormatch/internal/ranking"
	"github.com/spigell/mentormatch/internal/sentiment"
)

const maxBodyBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Checker reports whether a dependency is usable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Info is static model information reported by /health.
type Info struct {
	ScoringMode    string             `json:"scoringMode"`
	ScoringReason  string             `json:"scoringReason,omitempty"`
	VocabularySize int                `json:"vocabularySize"`
	Filters        []filtering.Status `json:"filters,omitempty"`
	Version        string             `json:"version,omitempty"`
}

// Deps are the services behind the routes.
type Deps struct {
	Ranking   *ranking.Service
	Feedback  *feedback.Service
	Sentiment *sentiment.Analyzer
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Checkers  map[string]Checker
	Info      Info
	Logger    *zap.Logger
}

// Server represents the HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	logger     *zap.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New wires routes and middleware.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/feedback", s.handleSubmitFeedback)
	mux.HandleFunc("GET /api/feedback", s.handleListFeedback)
	mux.HandleFunc("GET /api/feedback/summary", s.handleFeedbackSummary)
	mux.HandleFunc("POST /api/sentiment/analyze", s.handleSentiment)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = s.withRequestID(s.withLogging(s.withMetrics(s.withCORS(s.withBodyLimit(mux)))))

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.requestLogger(r).Warn("encoding JSON response failed", zap.Error(err))
	}
}

// errorResponse writes {"error": message} with the status derived from err.
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	log := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.jsonResponse(w, r, status, map[string]string{"error": err.Error()})
}
