package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/ranking"
)

// Filter represents a single step applied to the ranked mentor list.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinimumScore   int
	MaxResults     int
	ExcludeMentors []string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard steps in the order they run.
func Default() []Filter {
	return []Filter{
		NewExcludeMentors(),
		NewMinimumScore(),
		NewMaxResults(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate prepares every enabled step with cfg.
func Validate(cfg *Config, steps []Filter) error {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

// Run executes the supplied filters sequentially. Steps must have been validated.
func Run(ctx context.Context, deps Deps, steps []Filter, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}

		next, info, err := step.Apply(ctx, deps, mentors)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		mentors = next
	}

	return mentors, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Pipeline is a validated list of steps. It implements ranking.Refiner and is
// read-only after construction.
type Pipeline struct {
	deps  Deps
	steps []Filter
}

// NewPipeline validates steps against cfg. With no steps the defaults are used.
func NewPipeline(cfg *Config, logger *zap.Logger, steps ...Filter) (*Pipeline, error) {
	if len(steps) == 0 {
		steps = Default()
	}
	if err := Validate(cfg, steps); err != nil {
		return nil, err
	}

	if logger != nil {
		for _, status := range Describe(steps) {
			if !status.Enabled {
				logger.Info("filter disabled", zap.String("name", status.Name), zap.String("reason", status.Reason))
			}
		}
	}

	return &Pipeline{deps: Deps{Logger: logger}, steps: steps}, nil
}

func (p *Pipeline) Refine(ctx context.Context, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, error) {
	return Run(ctx, p.deps, p.steps, mentors)
}

func (p *Pipeline) Describe() []Status {
	return Describe(p.steps)
}
