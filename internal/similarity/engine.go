// Package similarity computes semantic similarity between short texts by
// averaging pre-trained word vectors.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/spigell/mentormatch/internal/utils"
)

const logPreviewLength = 64

var errZeroNorm = errors.New("mean vector has zero norm")

// Engine compares texts using a Vectors table. An Engine without vectors is
// valid and always answers 0.
type Engine struct {
	vectors Vectors
	logger  *zap.Logger
}

func NewEngine(vectors Vectors, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{vectors: vectors, logger: logger}
}

// Available reports whether a vocabulary is loaded.
func (e *Engine) Available() bool {
	return e != nil && e.vectors != nil && e.vectors.Len() > 0
}

// VocabularySize is the number of known words, 0 when unavailable.
func (e *Engine) VocabularySize() int {
	if !e.Available() {
		return 0
	}
	return e.vectors.Len()
}

// Similarity returns the cosine similarity of the mean word vectors of a and b,
// floored at 0. Texts without in-vocabulary tokens score 0. Failures are logged
// and reported as 0.
func (e *Engine) Similarity(a, b string) float64 {
	if !e.Available() {
		return 0
	}

	sim, err := e.similarity(a, b)
	if err != nil {
		level := e.logger.Warn
		if errors.Is(err, errZeroNorm) {
			level = e.logger.Debug
		}
		level("similarity computation failed",
			zap.String("text_a", utils.TruncateForLog(a, logPreviewLength)),
			zap.String("text_b", utils.TruncateForLog(b, logPreviewLength)),
			zap.Error(err),
		)
		return 0
	}
	return sim
}

func (e *Engine) similarity(a, b string) (float64, error) {
	va, err := e.meanVector(a)
	if err != nil || va == nil {
		return 0, err
	}
	vb, err := e.meanVector(b)
	if err != nil || vb == nil {
		return 0, err
	}

	if len(va) != len(vb) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(va), len(vb))
	}

	na, nb := floats.Norm(va, 2), floats.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0, errZeroNorm
	}

	sim := floats.Dot(va, vb) / (na * nb)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, fmt.Errorf("non-finite similarity %v", sim)
	}

	return math.Min(1, math.Max(0, sim)), nil
}

// meanVector averages the vectors of the known tokens of text. It returns nil
// when no token is in the vocabulary.
func (e *Engine) meanVector(text string) ([]float64, error) {
	var (
		sum   []float64
		count int
	)

	for _, token := range Tokenize(text) {
		vec, ok := e.vectors.Vector(token)
		if !ok {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) != len(sum) {
			return nil, fmt.Errorf("token %q has dimension %d, want %d", token, len(vec), len(sum))
		}
		floats.Add(sum, vec)
		count++
	}

	if count == 0 {
		return nil, nil
	}

	floats.Scale(1/float64(count), sum)
	return sum, nil
}

// Tokenize lowercases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
