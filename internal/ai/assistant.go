package ai

import "context"

// Sentiment labels understood across the service.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Classification is a model's verdict on one text.
type Classification struct {
	Sentiment string
	Score     float64
	Raw       string
}

// Classifier labels the sentiment of free text.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// ValidSentiment reports whether s is one of the known labels.
func ValidSentiment(s string) bool {
	switch s {
	case Positive, Negative, Neutral:
		return true
	default:
		return false
	}
}
