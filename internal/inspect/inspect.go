// Package inspect reports what a model artifact on disk contains.
package inspect

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spigell/mentormatch/internal/scoring"
	"github.com/spigell/mentormatch/internal/similarity"
)

// Kind is the detected artifact type.
type Kind string

const (
	KindMissing         Kind = "missing"
	KindUnknown         Kind = "unknown"
	KindWord2VecText    Kind = "word2vec_text"
	KindWord2VecBinary  Kind = "word2vec_binary"
	KindWeightVector    Kind = "weight_vector"
	KindLinearEstimator Kind = "linear_estimator"
)

const (
	headerBytes    = 10
	sampleWords    = 10
	previewWeights = 10
	bytesPerMB     = 1 << 20
)

// Report describes one artifact.
type Report struct {
	Path   string  `json:"path"`
	Exists bool    `json:"exists"`
	SizeMB float64 `json:"sizeMb"`
	Header string  `json:"header"`
	Kind   Kind    `json:"kind"`
	Error  string  `json:"error,omitempty"`

	Vocabulary *Vocabulary `json:"vocabulary,omitempty"`
	Weights    *Weights    `json:"weights,omitempty"`
	Estimator  *Estimator  `json:"estimator,omitempty"`
}

type Vocabulary struct {
	Size     int      `json:"size"`
	Dim      int      `json:"dim"`
	Declared int      `json:"declared"`
	Skipped  int      `json:"skipped"`
	Sample   []string `json:"sample"`
}

type Weights struct {
	Count int       `json:"count"`
	First []float64 `json:"first"`
}

type Estimator struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Link         string    `json:"link"`
	Scaled       bool      `json:"scaled"`
}

// Inspect examines path. Problems are recorded in the report, not returned.
func Inspect(path string, format similarity.Format) *Report {
	r := &Report{Path: path, Kind: KindMissing}

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.Error = err.Error()
		}
		return r
	}
	r.Exists = true
	r.SizeMB = float64(info.Size()) / bytesPerMB

	head, err := readHead(path, headerBytes)
	if err != nil {
		r.Kind = KindUnknown
		r.Error = err.Error()
		return r
	}
	r.Header = hex.EncodeToString(head)

	if looksLikeJSON(head) {
		r.inspectScoring(path)
		return r
	}
	r.inspectEmbeddings(path, format)
	return r
}

func (r *Report) inspectScoring(path string) {
	model, err := scoring.Load(path)
	if err != nil {
		r.Kind = KindUnknown
		r.Error = err.Error()
		return
	}

	switch model.Mode() {
	case scoring.ModeWeightVector:
		weights := model.Weights()
		r.Kind = KindWeightVector
		r.Weights = &Weights{Count: len(weights), First: firstN(weights, previewWeights)}
	case scoring.ModeEstimator:
		r.Kind = KindLinearEstimator
		if linear, ok := model.Estimator().(*scoring.LinearEstimator); ok {
			r.Estimator = &Estimator{
				Intercept:    linear.Intercept,
				Coefficients: linear.Coefficients,
				Link:         string(linear.Link),
				Scaled:       linear.Scaler != nil,
			}
		}
	default:
		r.Kind = KindUnknown
		r.Error = model.Reason()
	}
}

func (r *Report) inspectEmbeddings(path string, format similarity.Format) {
	vectors, stats, err := similarity.Load(path, format)
	if err != nil {
		r.Kind = KindUnknown
		r.Error = err.Error()
		return
	}

	r.Kind = KindWord2VecText
	if stats.Format == similarity.FormatBinary {
		r.Kind = KindWord2VecBinary
	}
	r.Vocabulary = &Vocabulary{
		Size:     vectors.Len(),
		Dim:      vectors.Dim(),
		Declared: stats.Declared,
		Skipped:  stats.Skipped,
		Sample:   vectors.Sample(sampleWords),
	}
}

// Render writes a human-readable version of the report.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "path:    %s\n", r.Path)
	fmt.Fprintf(&b, "exists:  %t\n", r.Exists)
	if r.Exists {
		fmt.Fprintf(&b, "size:    %.2f MB\n", r.SizeMB)
		fmt.Fprintf(&b, "header:  %s\n", r.Header)
	}
	fmt.Fprintf(&b, "kind:    %s\n", r.Kind)

	if v := r.Vocabulary; v != nil {
		fmt.Fprintf(&b, "vocabulary: %d words (declared %d, skipped %d), %d dimensions\n", v.Size, v.Declared, v.Skipped, v.Dim)
		fmt.Fprintf(&b, "sample:  %s\n", strings.Join(v.Sample, ", "))
	}
	if wt := r.Weights; wt != nil {
		fmt.Fprintf(&b, "weights: %d values, first %v\n", wt.Count, wt.First)
	}
	if e := r.Estimator; e != nil {
		fmt.Fprintf(&b, "estimator: link=%s intercept=%g scaled=%t\n", e.Link, e.Intercept, e.Scaled)
		fmt.Fprintf(&b, "coefficients: %v\n", e.Coefficients)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error:   %s\n", r.Error)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func looksLikeJSON(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func firstN(values []float64, n int) []float64 {
	if len(values) < n {
		n = len(values)
	}
	out := make([]float64, n)
	copy(out, values[:n])
	return out
}
