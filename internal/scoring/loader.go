package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/mentormatch/internal/features"
)

const (
	artifactLinear  = "linear"
	artifactWeights = "weights"
)

var ErrUnsupportedArtifact = errors.New("unsupported scoring artifact")

// Artifact is the object form of a scoring artifact.
type Artifact struct {
	Type         string    `mapstructure:"type"`
	Intercept    float64   `mapstructure:"intercept"`
	Coefficients []float64 `mapstructure:"coefficients"`
	Weights      []float64 `mapstructure:"weights"`
	Link         string    `mapstructure:"link"`
	Scaler       *Scaler   `mapstructure:"scaler"`

	// Extra holds keys this service does not interpret, such as training metadata.
	Extra map[string]any `mapstructure:",remain"`
}

// Load reads a scoring artifact and resolves it to a Model. On any failure the
// returned Model is Unavailable and carries the reason; the error is returned so
// callers can log it.
func Load(path string) (Model, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Unavailable("no scoring model configured"), errors.New("scoring model path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Unavailable(err.Error()), fmt.Errorf("read scoring model: %w", err)
	}

	model, err := Parse(data)
	if err != nil {
		return Unavailable(err.Error()), fmt.Errorf("parse scoring model %q: %w", path, err)
	}
	return model, nil
}

// Parse resolves raw artifact bytes to a Model. A JSON array of numbers is a
// weight vector; an object is decoded as an Artifact.
func Parse(data []byte) (Model, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return Unavailable(err.Error()), err
	}
	return Resolve(generic)
}

// Resolve turns a decoded artifact value into a Model.
func Resolve(generic any) (Model, error) {
	switch v := generic.(type) {
	case []any:
		var weights []float64
		if err := decode(v, &weights); err != nil {
			return Unavailable(err.Error()), fmt.Errorf("decode weight vector: %w", err)
		}
		if len(weights) == 0 {
			return Unavailable("weight vector is empty"), fmt.Errorf("%w: empty weight vector", ErrUnsupportedArtifact)
		}
		return WeightVectorModel(weights), nil

	case map[string]any:
		var a Artifact
		if err := decode(v, &a); err != nil {
			return Unavailable(err.Error()), fmt.Errorf("decode artifact: %w", err)
		}
		return a.model()

	default:
		err := fmt.Errorf("%w: top-level %T", ErrUnsupportedArtifact, generic)
		return Unavailable(err.Error()), err
	}
}

func (a *Artifact) model() (Model, error) {
	kind := strings.ToLower(strings.TrimSpace(a.Type))
	if kind == "" {
		switch {
		case len(a.Coefficients) > 0:
			kind = artifactLinear
		case len(a.Weights) > 0:
			kind = artifactWeights
		}
	}

	switch kind {
	case artifactWeights:
		if len(a.Weights) == 0 {
			return Unavailable("weight vector is empty"), fmt.Errorf("%w: empty weight vector", ErrUnsupportedArtifact)
		}
		return WeightVectorModel(a.Weights), nil

	case artifactLinear:
		if len(a.Coefficients) == 0 {
			return Unavailable("estimator has no coefficients"), fmt.Errorf("%w: linear estimator without coefficients", ErrUnsupportedArtifact)
		}
		if len(a.Coefficients) != features.Count {
			err := fmt.Errorf("%w: estimator expects %d features, the extractor produces %d", ErrUnsupportedArtifact, len(a.Coefficients), features.Count)
			return Unavailable(err.Error()), err
		}
		link := Link(strings.ToLower(strings.TrimSpace(a.Link)))
		switch link {
		case "":
			link = LinkIdentity
		case LinkIdentity, LinkLogistic:
		default:
			return Unavailable("unknown link " + string(link)), fmt.Errorf("%w: unknown link %q", ErrUnsupportedArtifact, a.Link)
		}
		if a.Scaler != nil && (len(a.Scaler.Mean) != len(a.Coefficients) || len(a.Scaler.Scale) != len(a.Coefficients)) {
			return Unavailable("scaler does not match coefficients"), fmt.Errorf("%w: scaler size mismatch", ErrUnsupportedArtifact)
		}
		return EstimatorModel(&LinearEstimator{
			Intercept:    a.Intercept,
			Coefficients: a.Coefficients,
			Link:         link,
			Scaler:       a.Scaler,
		}), nil

	default:
		err := fmt.Errorf("%w: type %q", ErrUnsupportedArtifact, a.Type)
		return Unavailable(err.Error()), err
	}
}

func decode(input any, result any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: result,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
