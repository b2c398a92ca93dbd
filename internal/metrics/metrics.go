// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricHTTPRequestsTotal      = "http_requests_total"
	MetricHTTPRequestDuration    = "http_request_duration_seconds"
	MetricMentorScoresTotal      = "mentor_scores_total"
	MetricMentorScoringFailures  = "mentor_scoring_failures_total"
	MetricSentimentResultsTotal  = "sentiment_results_total"
	MetricFeedbackSubmissionsTot = "feedback_submissions_total"
)

// Metrics is safe for concurrent use.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	mentorScores        *prometheus.CounterVec
	scoringFailures     prometheus.Counter
	sentimentResults    *prometheus.CounterVec
	feedbackSubmissions prometheus.Counter
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"method", "path", "status"},
		),
		mentorScores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMentorScoresTotal,
				Help: "Total number of mentors scored, by scoring mode",
			},
			[]string{"mode"},
		),
		scoringFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricMentorScoringFailures,
				Help: "Total number of mentors that could not be scored",
			},
		),
		sentimentResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSentimentResultsTotal,
				Help: "Total number of analyzed texts, by the stage that labeled them",
			},
			[]string{"source"},
		),
		feedbackSubmissions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFeedbackSubmissionsTot,
				Help: "Total number of stored feedback submissions",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.mentorScores,
		m.scoringFailures,
		m.sentimentResults,
		m.feedbackSubmissions,
	}
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
}

func (m *Metrics) ObserveScore(mode string) {
	m.mentorScores.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveScoringFailure() {
	m.scoringFailures.Inc()
}

func (m *Metrics) ObserveSentiment(source string) {
	m.sentimentResults.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveFeedback() {
	m.feedbackSubmissions.Inc()
}
