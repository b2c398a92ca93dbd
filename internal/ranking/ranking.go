// Package ranking scores every mentor against a student and orders them by
// match score.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/features"
	"github.com/spigell/mentormatch/internal/profile"
	"github.com/spigell/mentormatch/internal/scoring"
)

// MatchScoreField is the key added to every mentor object in the response.
const MatchScoreField = "matchScore"

// ScoredMentor is an input mentor annotated with its score.
type ScoredMentor struct {
	Record     *profile.MentorRecord
	Features   features.Vector
	MatchScore int
}

// MarshalJSON writes the original mentor object with matchScore added.
func (m ScoredMentor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Record.Raw)+1)
	for k, v := range m.Record.Raw {
		out[k] = v
	}
	out[MatchScoreField] = m.MatchScore
	return json.Marshal(out)
}

// ItemError describes a mentor that could not be scored.
type ItemError struct {
	Index    int    `json:"index"`
	MentorID string `json:"mentorId,omitempty"`
	Message  string `json:"error"`
	Err      error  `json:"-"`
}

func (e *ItemError) Error() string {
	if e.MentorID != "" {
		return fmt.Sprintf("mentor %d (%s): %s", e.Index, e.MentorID, e.Message)
	}
	return fmt.Sprintf("mentor %d: %s", e.Index, e.Message)
}

func (e *ItemError) Unwrap() error { return e.Err }

func newItemError(index int, id string, err error) *ItemError {
	return &ItemError{Index: index, MentorID: id, Message: err.Error(), Err: err}
}

// Result is the outcome of one ranking call. Mentors is never nil.
type Result struct {
	Mentors []ScoredMentor `json:"mentors"`
	Errors  []*ItemError   `json:"errors,omitempty"`
}

// Refiner post-processes the ordered list, for example to drop low scores.
type Refiner interface {
	Refine(ctx context.Context, mentors []ScoredMentor) ([]ScoredMentor, error)
}

// Recorder receives scoring telemetry.
type Recorder interface {
	ObserveScore(mode string)
	ObserveScoringFailure()
}

// Service ranks mentors. It holds no mutable state and is safe for concurrent use.
type Service struct {
	extractor *features.Extractor
	scorer    *scoring.Scorer
	refiner   Refiner
	recorder  Recorder
	timeout   time.Duration
	logger    *zap.Logger
}

type Option func(*Service)

func WithRefiner(r Refiner) Option {
	return func(s *Service) { s.refiner = r }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(extractor *features.Extractor, scorer *scoring.Scorer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{extractor: extractor, scorer: scorer, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the scoring mode in use.
func (s *Service) Mode() scoring.Mode { return s.scorer.Mode() }

// Rank decodes and scores each mentor, then sorts descending by score. Mentors
// with equal scores keep their input order. A mentor that fails to decode or
// score is reported in Result.Errors and left out of Result.Mentors. The call
// fails as a whole only when ctx is done or the refiner fails.
func (s *Service) Rank(ctx context.Context, student *profile.Student, mentors []json.RawMessage) (*Result, error) {
	result := &Result{Mentors: make([]ScoredMentor, 0, len(mentors))}
	mode := s.scorer.Mode().String()

	for i, raw := range mentors {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ranking interrupted after %d of %d mentors: %w", i, len(mentors), err)
		}

		scored, err := s.scoreOne(student, i, raw)
		if err != nil {
			s.logger.Warn("mentor scoring failed",
				zap.Int("index", i),
				zap.String("mentor_id", err.MentorID),
				zap.Error(err.Err),
			)
			if s.recorder != nil {
				s.recorder.ObserveScoringFailure()
			}
			result.Errors = append(result.Errors, err)
			continue
		}

		if s.recorder != nil {
			s.recorder.ObserveScore(mode)
		}
		result.Mentors = append(result.Mentors, *scored)
	}

	sort.SliceStable(result.Mentors, func(i, j int) bool {
		return result.Mentors[i].MatchScore > result.Mentors[j].MatchScore
	})

	if s.refiner != nil {
		refined, err := s.refiner.Refine(ctx, result.Mentors)
		if err != nil {
			return nil, fmt.Errorf("refine ranking: %w", err)
		}
		if refined == nil {
			refined = []ScoredMentor{}
		}
		result.Mentors = refined
	}

	s.logger.Info("mentors ranked",
		zap.String("scoring_mode", mode),
		zap.Int("requested", len(mentors)),
		zap.Int("ranked", len(result.Mentors)),
		zap.Int("failed", len(result.Errors)),
	)

	return result, nil
}

func (s *Service) scoreOne(student *profile.Student, index int, raw json.RawMessage) (*ScoredMentor, *ItemError) {
	record, err := profile.DecodeMentor(index, raw)
	if err != nil {
		return nil, newItemError(index, "", fmt.Errorf("decode mentor: %w", err))
	}

	vec := s.extractor.Extract(student, record.Mentor)

	score, err := s.scorer.Score(vec)
	if err != nil {
		return nil, newItemError(index, record.Label(), err)
	}

	s.logger.Debug("mentor scored",
		zap.Int("index", index),
		zap.String("mentor_id", record.Label()),
		zap.Any("features", vec.Map()),
		zap.Int("match_score", score),
	)

	return &ScoredMentor{Record: record, Features: vec, MatchScore: score}, nil
}
