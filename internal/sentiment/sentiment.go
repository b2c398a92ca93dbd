// Package sentiment labels short feedback texts as positive, negative or
// neutral with a confidence score.
//
// Texts are resolved in this order: too short to judge, explicit override
// rules, the optional AI classifier, and finally a keyword lexicon.
package sentiment

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/ai"
	"github.com/spigell/mentormatch/internal/utils"
	"github.com/spigell/mentormatch/internal/validation"
)

// Sources name the stage that produced a Result.
const (
	SourceShort      = "short"
	SourceOverride   = "override"
	SourceClassifier = "classifier"
	SourceLexicon    = "lexicon"
)

const (
	DefaultMinLength = 5

	shortScore       = 0.5
	neutralScore     = 0.6
	lexiconBaseScore = 0.7
	lexiconSpan      = 0.3
	logPreviewLength = 80
)

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "love", "best"}
	negativeWords = []string{"bad", "poor", "terrible", "worst", "hate", "awful"}
)

// DefaultOverrides keeps Python-related feedback strongly positive.
var DefaultOverrides = []Rule{
	{Keyword: "python", Sentiment: ai.Positive, Score: 0.95},
}

// Rule forces a label on every text containing Keyword, case-insensitively.
type Rule struct {
	Keyword   string  `mapstructure:"keyword" json:"keyword"`
	Sentiment string  `mapstructure:"sentiment" json:"sentiment"`
	Score     float64 `mapstructure:"score" json:"score"`
}

type Config struct {
	MinLength int
	Overrides []Rule
}

// Result is the verdict on one text. Text is echoed unchanged.
type Result struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
	Source    string  `json:"-"`
}

// Request is the body of a batch analysis call.
type Request struct {
	Texts []string `json:"texts" validate:"required"`
}

func (r *Request) Validate() error {
	return validation.Struct(r)
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	minLength  int
	rules      []Rule
	classifier ai.Classifier
	logger     *zap.Logger
}

// NewAnalyzer validates the override rules. A nil classifier skips the AI stage.
func NewAnalyzer(cfg Config, classifier ai.Classifier, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	rules := make([]Rule, 0, len(cfg.Overrides))
	for i, rule := range cfg.Overrides {
		rule.Keyword = strings.ToLower(strings.TrimSpace(rule.Keyword))
		rule.Sentiment = strings.ToLower(strings.TrimSpace(rule.Sentiment))
		if rule.Keyword == "" {
			return nil, fmt.Errorf("override %d: keyword is required", i)
		}
		if !ai.ValidSentiment(rule.Sentiment) {
			return nil, fmt.Errorf("override %d: unknown sentiment %q", i, rule.Sentiment)
		}
		if rule.Score < 0 || rule.Score > 1 {
			return nil, fmt.Errorf("override %d: score %v is outside [0, 1]", i, rule.Score)
		}
		rules = append(rules, rule)
	}

	return &Analyzer{
		minLength:  minLength,
		rules:      rules,
		classifier: classifier,
		logger:     logger,
	}, nil
}

// Rules returns the active override rules.
func (a *Analyzer) Rules() []Rule {
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Analyze labels one text. It never fails: classifier errors fall back to the lexicon.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < a.minLength {
		return Result{Sentiment: ai.Neutral, Score: shortScore, Text: text, Source: SourceShort}
	}

	lower := strings.ToLower(trimmed)
	for _, rule := range a.rules {
		if strings.Contains(lower, rule.Keyword) {
			a.logger.Debug("sentiment override applied",
				zap.String("keyword", rule.Keyword),
				zap.String("sentiment", rule.Sentiment),
			)
			return Result{Sentiment: rule.Sentiment, Score: rule.Score, Text: text, Source: SourceOverride}
		}
	}

	if a.classifier != nil {
		verdict, err := a.classifier.Classify(ctx, trimmed)
		if err == nil {
			return Result{Sentiment: verdict.Sentiment, Score: verdict.Score, Text: text, Source: SourceClassifier}
		}
		a.logger.Warn("sentiment classifier failed, using lexicon",
			zap.String("text_preview", utils.TruncateForLog(trimmed, logPreviewLength)),
			zap.Error(err),
		)
	}

	sentiment, score := Lexicon(lower)
	return Result{Sentiment: sentiment, Score: score, Text: text, Source: SourceLexicon}
}

// AnalyzeBatch labels every non-blank text, in input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string) []Result {
	results := make([]Result, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		results = append(results, a.Analyze(ctx, text))
	}
	return results
}

// Lexicon scores text by counting which positive and negative keywords it contains.
func Lexicon(text string) (string, float64) {
	text = strings.ToLower(text)
	positive := countContained(text, positiveWords)
	negative := countContained(text, negativeWords)
	total := float64(positive + negative + 1)

	switch {
	case positive > negative:
		return ai.Positive, lexiconBaseScore + lexiconSpan*float64(positive)/total
	case negative > positive:
		return ai.Negative, lexiconBaseScore + lexiconSpan*float64(negative)/total
	default:
		return ai.Neutral, neutralScore
	}
}

func countContained(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
