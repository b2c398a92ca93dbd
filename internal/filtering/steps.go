package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/ranking"
	"github.com/spigell/mentormatch/internal/scoring"
)

type excludeMentorsFilter struct {
	disabled bool
	reason   string
	ids      map[string]struct{}
	list     []string
}

// NewExcludeMentors creates a filter that removes mentors listed in the config by id.
func NewExcludeMentors() Filter {
	return &excludeMentorsFilter{}
}

func (f *excludeMentorsFilter) Name() string { return "exclude_mentors" }

func (f *excludeMentorsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeMentorsFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeMentorsFilter) Validate(cfg *Config) error {
	f.ids = make(map[string]struct{})
	f.list = nil
	if cfg != nil {
		for _, id := range cfg.ExcludeMentors {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := f.ids[id]; !ok {
				f.list = append(f.list, id)
			}
			f.ids[id] = struct{}{}
		}
	}
	if len(f.ids) == 0 {
		f.Disable("no mentors excluded")
	}
	return nil
}

func (f *excludeMentorsFilter) Apply(_ context.Context, deps Deps, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, Step, error) {
	initial := len(mentors)
	kept := make([]ranking.ScoredMentor, 0, initial)
	var excluded []string

	for _, m := range mentors {
		id := m.Record.Label()
		if _, ok := f.ids[id]; ok {
			excluded = append(excluded, id)
			continue
		}
		kept = append(kept, m)
	}

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding mentors by id",
			zap.Strings("excluded_mentors", excluded),
			zap.Int("mentors_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *excludeMentorsFilter) Status() Status {
	details := map[string]string{}
	if len(f.list) > 0 {
		details["mentors"] = strings.Join(f.list, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type minimumScoreFilter struct {
	disabled bool
	reason   string
	minimum  int
}

// NewMinimumScore creates a filter that removes mentors scoring below the configured minimum.
func NewMinimumScore() Filter {
	return &minimumScoreFilter{}
}

func (f *minimumScoreFilter) Name() string { return "minimum_score" }

func (f *minimumScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minimumScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minimumScoreFilter) Validate(cfg *Config) error {
	f.minimum = 0
	if cfg != nil {
		f.minimum = cfg.MinimumScore
	}
	if f.minimum < scoring.MinScore || f.minimum > scoring.MaxScore {
		return fmt.Errorf("minimum score %d is outside [%d, %d]", f.minimum, scoring.MinScore, scoring.MaxScore)
	}
	if f.minimum == 0 {
		f.Disable("minimum score is 0")
	}
	return nil
}

// Apply relies on the list being sorted by descending score.
func (f *minimumScoreFilter) Apply(_ context.Context, _ Deps, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, Step, error) {
	initial := len(mentors)
	cut := initial
	for i, m := range mentors {
		if m.MatchScore < f.minimum {
			cut = i
			break
		}
	}
	kept := mentors[:cut]
	return kept, Step{Initial: initial, Dropped: initial - cut, Left: cut}, nil
}

func (f *minimumScoreFilter) Status() Status {
	details := map[string]string{
		"minimum_score": strconv.Itoa(f.minimum),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type maxResultsFilter struct {
	disabled bool
	reason   string
	limit    int
}

// NewMaxResults creates a filter that keeps only the top mentors.
func NewMaxResults() Filter {
	return &maxResultsFilter{}
}

func (f *maxResultsFilter) Name() string { return "max_results" }

func (f *maxResultsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *maxResultsFilter) IsEnabled() bool { return !f.disabled }

func (f *maxResultsFilter) Validate(cfg *Config) error {
	f.limit = 0
	if cfg != nil {
		f.limit = cfg.MaxResults
	}
	if f.limit < 0 {
		return fmt.Errorf("max results must not be negative, got %d", f.limit)
	}
	if f.limit == 0 {
		f.Disable("no limit configured")
	}
	return nil
}

func (f *maxResultsFilter) Apply(_ context.Context, _ Deps, mentors []ranking.ScoredMentor) ([]ranking.ScoredMentor, Step, error) {
	initial := len(mentors)
	if initial <= f.limit {
		return mentors, Step{Initial: initial, Left: initial}, nil
	}
	return mentors[:f.limit], Step{Initial: initial, Dropped: initial - f.limit, Left: f.limit}, nil
}

func (f *maxResultsFilter) Status() Status {
	details := map[string]string{
		"max_results": strconv.Itoa(f.limit),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
