package scoring

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/spigell/mentormatch/internal/features"
)

const (
	MinScore = 0
	MaxScore = 100

	// experienceCeiling inverts the experience difference in static mode so
	// that closer experience scores higher.
	experienceCeiling = 10
)

var errNaNScore = errors.New("score is NaN")

// StaticWeights apply to the first seven features when no model is usable.
// Bio similarity is not weighted in this mode.
var StaticWeights = []float64{15, 20, 10, 10, -2, 5, 2}

// Scorer turns feature vectors into integer scores in [0, 100]. It is safe for
// concurrent use: the model is fixed at construction.
type Scorer struct {
	model   Model
	weights []float64
	logger  *zap.Logger
}

func NewScorer(model Model, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scorer{model: model, logger: logger}
	if model.Mode() == ModeWeightVector {
		s.weights = alignWeights(model.weights, features.Count)
	}
	return s
}

func (s *Scorer) Mode() Mode { return s.model.Mode() }

// Model returns the resolved scoring model.
func (s *Scorer) Model() Model { return s.model }

// Score computes the match score for one feature vector.
func (s *Scorer) Score(v features.Vector) (int, error) {
	switch s.model.Mode() {
	case ModeEstimator:
		return s.estimate(v)
	case ModeWeightVector:
		return clampScore(floats.Dot(v.Slice(), s.weights))
	default:
		return StaticScore(v)
	}
}

func (s *Scorer) estimate(v features.Vector) (int, error) {
	prediction, err := s.model.estimator.Predict(v.Slice())
	if err != nil {
		return 0, fmt.Errorf("estimator predict: %w", err)
	}
	return clampScore(prediction * 100)
}

// StaticScore is the fallback weighted sum over the first seven features.
func StaticScore(v features.Vector) (int, error) {
	adjusted := v.Slice()[:len(StaticWeights)]
	adjusted[features.ExperienceDiff] = math.Max(0, experienceCeiling-adjusted[features.ExperienceDiff])
	return clampScore(floats.Dot(adjusted, StaticWeights))
}

// alignWeights pads a short coefficient list with 1s and truncates a long one.
func alignWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < len(weights) {
			out[i] = weights[i]
		} else {
			out[i] = 1
		}
	}
	return out
}

// clampScore clamps x to [0, 100] and truncates it to an integer. NaN has no
// place in that range and is an error.
func clampScore(x float64) (int, error) {
	if math.IsNaN(x) {
		return 0, errNaNScore
	}
	return int(math.Min(MaxScore, math.Max(MinScore, x))), nil
}
