package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/mentormatch/internal/features"
	"github.com/spigell/mentormatch/internal/profile"
	"github.com/spigell/mentormatch/internal/scoring"
	"github.com/spigell/mentormatch/internal/validation"
)

type stubRecorder struct {
	scores   map[string]int
	failures int
}

func (r *stubRecorder) ObserveScore(mode string) {
	if r.scores == nil {
		r.scores = map[string]int{}
	}
	r.scores[mode]++
}

func (r *stubRecorder) ObserveScoringFailure() { r.failures++ }

// ratingEstimator predicts rating/10 and fails on a rating of 13.
type ratingEstimator struct{}

func (ratingEstimator) Predict(x []float64) (float64, error) {
	if x[features.MentorRating] == 13 {
		return math.NaN(), nil
	}
	return x[features.MentorRating] / 10, nil
}

type keepFirst struct{ n int }

func (k keepFirst) Refine(_ context.Context, mentors []ScoredMentor) ([]ScoredMentor, error) {
	if len(mentors) > k.n {
		return mentors[:k.n], nil
	}
	return mentors, nil
}

type failingRefiner struct{}

func (failingRefiner) Refine(context.Context, []ScoredMentor) ([]ScoredMentor, error) {
	return nil, errors.New("refiner broke")
}

func newService(t *testing.T, model scoring.Model, opts ...Option) *Service {
	t.Helper()
	return NewService(features.NewExtractor(nil), scoring.NewScorer(model, nil), zap.NewNop(), opts...)
}

func rawMentors(t *testing.T, items ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func ids(t *testing.T, result *Result) []string {
	t.Helper()
	out := make([]string, 0, len(result.Mentors))
	for _, m := range result.Mentors {
		out = append(out, m.Record.Label())
	}
	return out
}

func TestRankOrdersDescendingAndKeepsTies(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.EstimatorModel(ratingEstimator{}))
	mentors := rawMentors(t,
		`{"id": "a", "rating": 3}`,
		`{"id": "b", "rating": 7}`,
		`{"id": "c", "rating": 3}`,
		`{"id": "d", "rating": 9}`,
		`{"id": "e", "rating": 7}`,
	)

	result, err := svc.Rank(context.Background(), &profile.Student{}, mentors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Join(ids(t, result), ",")
	if got != "d,b,e,a,c" {
		t.Fatalf("expected d,b,e,a,c, got %s", got)
	}
	if result.Mentors[0].MatchScore != 90 {
		t.Fatalf("expected top score 90, got %d", result.Mentors[0].MatchScore)
	}
}

func TestRankIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.Unavailable("test"))
	student, err := profile.DecodeStudent([]byte(`{"skills": ["go"], "location": "Oslo", "experienceYears": 4}`))
	if err != nil {
		t.Fatalf("decode student: %v", err)
	}
	mentors := rawMentors(t,
		`{"id": 1, "skills": ["go"], "location": "Oslo", "experienceYears": 5, "rating": 4}`,
		`{"id": 2, "skills": ["rust"], "experienceYears": 4, "rating": 5}`,
		`{"id": 3, "skills": ["go"], "location": "Oslo", "experienceYears": 5, "rating": 4}`,
	)

	first, err := svc.Rank(context.Background(), student, mentors)
	if err != nil {
		t.Fatalf("first rank: %v", err)
	}
	second, err := svc.Rank(context.Background(), student, mentors)
	if err != nil {
		t.Fatalf("second rank: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("ranking is not idempotent:\n%s\n%s", a, b)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.Unavailable("test"))
	result, err := svc.Rank(context.Background(), &profile.Student{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"mentors":[]}` {
		t.Fatalf("unexpected body %s", data)
	}
}

func TestRankReportsItemErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	recorder := &stubRecorder{}
	svc := NewService(
		features.NewExtractor(nil),
		scoring.NewScorer(scoring.EstimatorModel(ratingEstimator{}), nil),
		zap.New(core),
		WithRecorder(recorder),
	)

	mentors := rawMentors(t,
		`"not an object"`,
		`{"id": "ok", "rating": 5}`,
		`{"id": "nan", "rating": 13}`,
		`{"id": 7, "rating": "high"}`,
	)

	result, err := svc.Rank(context.Background(), &profile.Student{}, mentors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := ids(t, result); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("expected only the valid mentor, got %v", got)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 item errors, got %+v", result.Errors)
	}

	wantIndex := []int{0, 2, 3}
	for i, itemErr := range result.Errors {
		if itemErr.Index != wantIndex[i] {
			t.Fatalf("error %d: expected index %d, got %d", i, wantIndex[i], itemErr.Index)
		}
	}
	if result.Errors[1].MentorID != "nan" {
		t.Fatalf("expected mentor id on the score failure, got %q", result.Errors[1].MentorID)
	}

	if recorder.failures != 3 || recorder.scores["estimator"] != 1 {
		t.Fatalf("unexpected telemetry %+v", recorder)
	}
	if logs.FilterMessage("mentor scoring failed").Len() != 3 {
		t.Fatalf("expected every failure to be logged")
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"errors":[{"index":0,"error":`) {
		t.Fatalf("unexpected body %s", data)
	}
}

func TestScoredMentorEchoesInput(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.Unavailable("test"))
	mentors := rawMentors(t, `{"id": 12345678901, "name": "Ada", "extra": {"nested": [1, 2]}, "rating": 4.5}`)

	result, err := svc.Rank(context.Background(), &profile.Student{}, mentors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(result.Mentors[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(string(data), `"id":12345678901`) || got["name"] != "Ada" || got["extra"] == nil {
		t.Fatalf("input fields must be echoed unchanged, got %s", data)
	}
	if _, ok := got[MatchScoreField]; !ok {
		t.Fatalf("expected %s in %s", MatchScoreField, data)
	}
}

func TestRankRefiner(t *testing.T) {
	t.Parallel()

	mentors := rawMentors(t, `{"id": "a", "rating": 1}`, `{"id": "b", "rating": 2}`, `{"id": "c", "rating": 3}`)

	svc := newService(t, scoring.EstimatorModel(ratingEstimator{}), WithRefiner(keepFirst{n: 2}))
	result, err := svc.Rank(context.Background(), &profile.Student{}, mentors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(ids(t, result), ","); got != "c,b" {
		t.Fatalf("expected refiner to see the sorted list, got %s", got)
	}

	svc = newService(t, scoring.Unavailable("test"), WithRefiner(failingRefiner{}))
	if _, err := svc.Rank(context.Background(), &profile.Student{}, mentors); err == nil {
		t.Fatalf("expected refiner error")
	}
}

func TestRankStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.Unavailable("test"))
	mentors := rawMentors(t, `{"id": "a"}`)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.Rank(ctx, &profile.Student{}, mentors)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	svc := newService(t, scoring.Unavailable("test"), WithTimeout(time.Minute))

	req, err := DecodeRequest(strings.NewReader(`{"student": {"skills": ["go"]}, "mentors": [{"id": "a", "skills": ["go"]}]}`))
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	result, err := svc.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// skills 1*15 plus the inverted experience gap 10*-2
	if len(result.Mentors) != 1 || result.Mentors[0].MatchScore != 0 {
		t.Fatalf("unexpected result %+v", result.Mentors)
	}

	bad := &Request{Student: json.RawMessage(`"student"`), Mentors: []json.RawMessage{}}
	if _, err := svc.Handle(context.Background(), bad); !validation.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestDecodeRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "not json", body: `nope`, wantMsg: "Invalid JSON body"},
		{name: "missing student", body: `{"mentors": []}`, wantMsg: "Missing required field: student"},
		{name: "null student", body: `{"student": null, "mentors": []}`, wantMsg: "Missing required field: student"},
		{name: "missing mentors", body: `{"student": {}}`, wantMsg: "Missing required field: mentors"},
		{name: "mentors not an array", body: `{"student": {}, "mentors": 3}`, wantMsg: "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(strings.NewReader(tt.body))
			if !validation.IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}
