// Package scoring maps feature vectors to 0-100 match scores.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Mode is the scoring strategy resolved once when the model artifact is loaded.
type Mode int

const (
	// ModeUnavailable scores with the built-in static weights.
	ModeUnavailable Mode = iota
	// ModeEstimator scores with a trained estimator.
	ModeEstimator
	// ModeWeightVector scores with a stored per-feature coefficient list.
	ModeWeightVector
)

func (m Mode) String() string {
	switch m {
	case ModeEstimator:
		return "estimator"
	case ModeWeightVector:
		return "weight_vector"
	default:
		return "static_fallback"
	}
}

// Estimator predicts one raw score per feature vector.
type Estimator interface {
	Predict(features []float64) (float64, error)
}

// Model is the tagged scoring model. Exactly one of estimator or weights is
// set, according to mode.
type Model struct {
	mode      Mode
	estimator Estimator
	weights   []float64
	reason    string
}

func EstimatorModel(e Estimator) Model {
	if e == nil {
		return Unavailable("estimator is nil")
	}
	return Model{mode: ModeEstimator, estimator: e}
}

func WeightVectorModel(weights []float64) Model {
	if len(weights) == 0 {
		return Unavailable("weight vector is empty")
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return Model{mode: ModeWeightVector, weights: w}
}

func Unavailable(reason string) Model {
	return Model{mode: ModeUnavailable, reason: reason}
}

func (m Model) Mode() Mode { return m.mode }

// Reason explains why the model is unavailable.
func (m Model) Reason() string { return m.reason }

// Weights returns a copy of the stored coefficients.
func (m Model) Weights() []float64 {
	out := make([]float64, len(m.weights))
	copy(out, m.weights)
	return out
}

// Estimator returns the estimator, nil outside ModeEstimator.
func (m Model) Estimator() Estimator { return m.estimator }

// Link is applied to the linear predictor of a LinearEstimator.
type Link string

const (
	LinkIdentity Link = "identity"
	LinkLogistic Link = "logistic"
)

// Scaler standardizes features with training-time statistics.
type Scaler struct {
	Mean  []float64 `json:"mean" mapstructure:"mean"`
	Scale []float64 `json:"scale" mapstructure:"scale"`
}

// Transform returns (x - mean) / scale. A zero scale is treated as 1.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(s.Mean) != len(x) || len(s.Scale) != len(x) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(x))
	}

	out := make([]float64, len(x))
	floats.SubTo(out, x, s.Mean)
	for i, sc := range s.Scale {
		if sc != 0 {
			out[i] /= sc
		}
	}
	return out, nil
}

// LinearEstimator is a linear model with an optional logistic link.
type LinearEstimator struct {
	Intercept    float64
	Coefficients []float64
	Link         Link
	Scaler       *Scaler
}

var errFeatureCount = errors.New("feature count does not match the estimator")

func (l *LinearEstimator) Predict(x []float64) (float64, error) {
	if len(x) != len(l.Coefficients) {
		return 0, fmt.Errorf("%w: want %d, got %d", errFeatureCount, len(l.Coefficients), len(x))
	}

	if l.Scaler != nil {
		scaled, err := l.Scaler.Transform(x)
		if err != nil {
			return 0, err
		}
		x = scaled
	}

	z := l.Intercept + floats.Dot(l.Coefficients, x)
	if l.Link == LinkLogistic {
		z = 1 / (1 + math.Exp(-z))
	}
	return z, nil
}
