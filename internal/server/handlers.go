package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/ranking"
	"github.com/spigell/mentormatch/internal/sentiment"
	"github.com/spigell/mentormatch/internal/validation"
)

const readyTimeout = 2 * time.Second

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	req, err := ranking.DecodeRequest(r.Body)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	result, err := s.deps.Ranking.Handle(r.Context(), req)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.jsonResponse(w, r, http.StatusOK, result)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var sub feedback.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.errorResponse(w, r, validation.Malformed(err))
		return
	}

	record, err := s.deps.Feedback.Submit(r.Context(), &sub)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveFeedback()
	}

	s.jsonResponse(w, r, http.StatusCreated, record)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Feedback.List(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, items)
}

func (s *Server) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Feedback.Summary(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, r, http.StatusOK, summary)
}

type sentimentResponse struct {
	Results []sentiment.Result `json:"results"`
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req sentiment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, r, validation.Malformed(err))
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	results := s.deps.Sentiment.AnalyzeBatch(r.Context(), req.Texts)
	if s.deps.Metrics != nil {
		for _, res := range results {
			s.deps.Metrics.ObserveSentiment(res.Source)
		}
	}

	s.jsonResponse(w, r, http.StatusOK, sentimentResponse{Results: results})
}

type healthResponse struct {
	Status string `json:"status"`
	Info
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, r, http.StatusOK, healthResponse{Status: "ok", Info: s.deps.Info})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readyResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK
	for name, checker := range s.deps.Checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			s.requestLogger(r).Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	s.jsonResponse(w, r, status, resp)
}
