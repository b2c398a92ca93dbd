// Package features turns a (student, mentor) pair into the fixed-order numeric
// vector consumed by the scorer.
package features

import (
	"strings"

	"github.com/spigell/mentormatch/internal/profile"
)

// Positions inside a Vector. The order is part of the scoring contract:
// weight vectors are applied positionally.
const (
	SkillsMatch = iota
	IndustryMatch
	InterestsMatch
	LocationMatch
	ExperienceDiff
	MentorRating
	TotalMentees
	BioSimilarity

	Count
)

var names = [Count]string{
	"skillsMatch",
	"industryMatch",
	"interestsMatch",
	"locationMatch",
	"experienceDiff",
	"mentorRating",
	"totalMentees",
	"bioSimilarity",
}

// Vector is the feature vector of one pair.
type Vector [Count]float64

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// Map returns the features keyed by name, for logging and diagnostics.
func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, Count)
	for i, name := range names {
		out[name] = v[i]
	}
	return out
}

// Name returns the name of the feature at position i.
func Name(i int) string {
	if i < 0 || i >= Count {
		return ""
	}
	return names[i]
}

// Similarity scores two texts in [0, 1].
type Similarity interface {
	Similarity(a, b string) float64
}

// Extractor builds feature vectors. A nil Similarity disables the semantic
// contributions.
type Extractor struct {
	sim Similarity
}

func NewExtractor(sim Similarity) *Extractor {
	return &Extractor{sim: sim}
}

// Extract computes the feature vector for the pair. Missing inputs default to
// zero or mismatch; it never fails.
func (e *Extractor) Extract(student *profile.Student, mentor *profile.Mentor) Vector {
	var v Vector
	if student == nil {
		student = &profile.Student{}
	}
	if mentor == nil {
		mentor = &profile.Mentor{}
	}

	v[SkillsMatch] = e.overlap(student.SkillNames(), mentor.SkillNames())
	v[IndustryMatch] = equalIDs(student.IndustryID(), mentor.IndustryID())
	v[InterestsMatch] = e.overlap(student.InterestNames(), mentor.InterestNames())
	v[LocationMatch] = equalIDs(strings.TrimSpace(student.Location), strings.TrimSpace(mentor.Location))

	diff := student.ExperienceYears - mentor.ExperienceYears
	if diff < 0 {
		diff = -diff
	}
	v[ExperienceDiff] = diff

	v[MentorRating] = mentor.Rating
	v[TotalMentees] = mentor.TotalMentees

	if e.sim != nil && student.HasBio() && mentor.HasBio() {
		v[BioSimilarity] = e.sim.Similarity(*student.Bio, *mentor.Bio)
	}

	return v
}

// overlap counts exact matches and adds, for every student entry without an
// exact match, its best similarity against the mentor entries.
func (e *Extractor) overlap(studentTerms, mentorTerms []string) float64 {
	studentSet := lowerSet(studentTerms)
	mentorSet := lowerSet(mentorTerms)

	direct := 0
	for term := range studentSet {
		if _, ok := mentorSet[term]; ok {
			direct++
		}
	}

	semantic := 0.0
	if e.sim != nil && len(mentorSet) > 0 {
		candidates := lowerList(mentorTerms)
		for _, term := range lowerList(studentTerms) {
			if _, ok := mentorSet[term]; ok {
				continue
			}
			best := 0.0
			for _, candidate := range candidates {
				if s := e.sim.Similarity(term, candidate); s > best {
					best = s
				}
			}
			semantic += best
		}
	}

	return float64(direct) + semantic
}

func lowerList(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func lowerSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range lowerList(terms) {
		set[t] = struct{}{}
	}
	return set
}

// equalIDs is 1 when both values are present and equal.
func equalIDs(a, b string) float64 {
	if a == "" || b == "" || a != b {
		return 0
	}
	return 1
}
