package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/mentormatch/internal/features"
	"github.com/spigell/mentormatch/internal/feedback"
	"github.com/spigell/mentormatch/internal/metrics"
	"github.com/spigell/mentormatch/internal/ranking"
	"github.com/spigell/mentormatch/internal/scoring"
	"github.com/spigell/mentormatch/internal/sentiment"
	"github.com/spigell/mentormatch/internal/validation"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

type testEnv struct {
	server *Server
}

func newTestEnv(t *testing.T, checkers map[string]Checker) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	scorer := scoring.NewScorer(scoring.Unavailable("no artifact"), logger)
	rank := ranking.NewService(features.NewExtractor(nil), scorer, logger, ranking.WithRecorder(m))

	analyzer, err := sentiment.NewAnalyzer(sentiment.Config{Overrides: sentiment.DefaultOverrides}, nil, logger)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}

	srv := New(Config{Listen: "127.0.0.1:0"}, Deps{
		Ranking:   rank,
		Feedback:  feedback.NewService(feedback.NewMemoryStore(), feedback.DefaultEvents, logger),
		Sentiment: analyzer,
		Metrics:   m,
		Gatherer:  reg,
		Checkers:  checkers,
		Info:      Info{ScoringMode: scorer.Mode().String(), ScoringReason: "no artifact"},
		Logger:    logger,
	})

	return &testEnv{server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) expectMetric(t *testing.T, line string) {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), line) {
		t.Fatalf("expected metrics to contain %q", line)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestPredictStaticFallback(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{
		"student": {"skills": [{"name": "Python"}], "industry": {"id": 1}, "location": "Berlin", "experienceYears": 3},
		"mentors": [
			{"id": "far", "skills": [], "industry": {"id": 2}, "location": "Paris", "experienceYears": 30},
			{"id": "close", "name": "Ada", "skills": [{"name": "python"}], "industry": {"id": 1},
			 "location": "Berlin", "experienceYears": 3, "rating": 5, "totalMentees": 10}
		]
	}`

	rec := env.do(t, http.MethodPost, "/api/predict", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	var resp struct {
		Mentors []map[string]any `json:"mentors"`
		Errors  []any            `json:"errors"`
	}
	decodeBody(t, rec, &resp)

	if len(resp.Mentors) != 2 {
		t.Fatalf("expected 2 mentors, got %d", len(resp.Mentors))
	}
	if resp.Mentors[0]["id"] != "close" || resp.Mentors[0]["name"] != "Ada" {
		t.Fatalf("expected the close mentor first with its fields echoed, got %v", resp.Mentors[0])
	}
	if resp.Mentors[0]["matchScore"] != float64(70) {
		t.Fatalf("expected matchScore 70, got %v", resp.Mentors[0]["matchScore"])
	}
	if resp.Mentors[1]["matchScore"] != float64(0) {
		t.Fatalf("expected matchScore 0 for the far mentor, got %v", resp.Mentors[1]["matchScore"])
	}
	if resp.Errors != nil {
		t.Fatalf("expected no errors key, got %v", resp.Errors)
	}

	env.expectMetric(t, `mentor_scores_total{mode="static_fallback"} 2`)
}

func TestPredictEmptyMentors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/predict", `{"student": {}, "mentors": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"mentors":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestPredictReportsBadMentors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/predict", `{"student": {}, "mentors": [42, {"id": "ok"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var raw struct {
		Mentors []map[string]any    `json:"mentors"`
		Errors  []ranking.ItemError `json:"errors"`
	}
	decodeBody(t, rec, &raw)

	if len(raw.Mentors) != 1 || raw.Mentors[0]["id"] != "ok" {
		t.Fatalf("expected only the valid mentor, got %v", raw.Mentors)
	}
	if len(raw.Errors) != 1 || raw.Errors[0].Index != 0 || raw.Errors[0].Message == "" {
		t.Fatalf("expected one item error for index 0, got %+v", raw.Errors)
	}
}

func TestPredictRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "malformed json", body: `{"student":`, wantMsg: "Invalid JSON body"},
		{name: "missing student", body: `{"mentors": []}`, wantMsg: "Missing required field: student"},
		{name: "missing mentors", body: `{"student": {}}`, wantMsg: "Missing required field: mentors"},
		{name: "mentors not an array", body: `{"student": {}, "mentors": {}}`, wantMsg: "Invalid JSON body"},
		{name: "student not an object", body: `{"student": [1], "mentors": []}`, wantMsg: "student"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/predict", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			decodeBody(t, rec, &resp)
			if !strings.Contains(resp["error"], tt.wantMsg) {
				t.Fatalf("expected error containing %q, got %q", tt.wantMsg, resp["error"])
			}
		})
	}
}

func TestPredictBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"student": {"bio": "` + strings.Repeat("a", maxBodyBytes) + `"}, "mentors": []}`
	rec := env.do(t, http.MethodPost, "/api/predict", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestFeedbackFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/feedback", `{"eventId": "event1", "rating": 4}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete feedback, got %d", rec.Code)
	}
	var errResp map[string]string
	decodeBody(t, rec, &errResp)
	if errResp["error"] != "Missing required field: eventExperience" {
		t.Fatalf("unexpected error %q", errResp["error"])
	}

	for _, body := range []string{
		`{"eventId": "event1", "rating": 5, "eventExperience": 4, "speakerInteraction": 4, "sessionRelevance": 5, "suggestions": "more demos"}`,
		`{"eventId": "event1", "rating": 3, "eventExperience": 4, "speakerInteraction": 2, "sessionRelevance": 3}`,
	} {
		rec = env.do(t, http.MethodPost, "/api/feedback", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	var created feedback.Feedback
	decodeBody(t, rec, &created)
	if created.ID == "" || created.EventName != "Tech Career Workshop" || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected stored record %+v", created)
	}

	rec = env.do(t, http.MethodGet, "/api/feedback", "")
	var items []feedback.Feedback
	decodeBody(t, rec, &items)
	if len(items) != 2 || items[0].Suggestions != "more demos" {
		t.Fatalf("expected 2 records in insertion order, got %+v", items)
	}

	rec = env.do(t, http.MethodGet, "/api/feedback/summary", "")
	var summary feedback.Summary
	decodeBody(t, rec, &summary)
	if summary.Count != 2 || summary.Averages.Rating != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	env.expectMetric(t, "feedback_submissions_total 2")
}

func TestSentimentAnalyze(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/sentiment/analyze",
		`{"texts": ["great and amazing talk", "  ", "ok", "I learned python"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Results []sentiment.Result `json:"results"`
	}
	decodeBody(t, rec, &resp)

	if len(resp.Results) != 3 {
		t.Fatalf("expected blank text to be skipped, got %+v", resp.Results)
	}
	if resp.Results[0].Sentiment != "positive" || resp.Results[1].Score != 0.5 || resp.Results[2].Score != 0.95 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}

	for _, body := range []string{`{}`, `{"texts": "hello"}`} {
		rec = env.do(t, http.MethodPost, "/api/sentiment/analyze", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}

	rec = env.do(t, http.MethodPost, "/api/sentiment/analyze", `{"texts": []}`)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"results":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, map[string]Checker{"feedback": stubChecker{}})

	rec := env.do(t, http.MethodGet, "/health", "")
	var health map[string]any
	decodeBody(t, rec, &health)
	if health["status"] != "ok" || health["scoringMode"] != scoring.ModeUnavailable.String() {
		t.Fatalf("unexpected health %v", health)
	}

	rec = env.do(t, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}

	env = newTestEnv(t, map[string]Checker{"feedback": stubChecker{err: errors.New("connection refused")}})
	rec = env.do(t, http.MethodGet, "/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var ready readyResponse
	decodeBody(t, rec, &ready)
	if ready.Checks["feedback"] != "connection refused" {
		t.Fatalf("unexpected checks %v", ready.Checks)
	}
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", got)
	}

	rec = env.do(t, http.MethodOptions, "/api/predict", "")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}

	env.do(t, http.MethodGet, "/api/feedback", "")
	env.do(t, http.MethodGet, "/nope", "")

	env.expectMetric(t, `http_requests_total{method="GET",path="/api/feedback",status="200"} 1`)
	env.expectMetric(t, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)

	rec = env.do(t, http.MethodGet, "/metrics", "")
	if strings.Contains(rec.Body.String(), `path="/health"`) {
		t.Fatalf("health checks must not be recorded")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: validation.Missing("student"), want: http.StatusBadRequest},
		{err: fmt.Errorf("wrapped: %w", validation.Malformed(errors.New("eof"))), want: http.StatusBadRequest},
		{err: &http.MaxBytesError{Limit: 1}, want: http.StatusRequestEntityTooLarge},
		{err: fmt.Errorf("ranking interrupted: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{err: context.Canceled, want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
