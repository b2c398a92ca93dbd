package feedback

import "math"

// Averages are mean ratings rounded to one decimal.
type Averages struct {
	Rating             float64 `json:"rating"`
	EventExperience    float64 `json:"eventExperience"`
	SpeakerInteraction float64 `json:"speakerInteraction"`
	SessionRelevance   float64 `json:"sessionRelevance"`
}

// Distribution counts ratings 1 through 5.
type Distribution [5]int

// EventSummary aggregates the feedback of one event.
type EventSummary struct {
	EventID            string       `json:"eventId"`
	EventName          string       `json:"eventName"`
	Count              int          `json:"count"`
	UniqueUsers        int          `json:"uniqueUsers"`
	Averages           Averages     `json:"averages"`
	RatingDistribution Distribution `json:"ratingDistribution"`
	Suggestions        []string     `json:"suggestions"`
	SentimentScore     float64      `json:"sentimentScore"`
}

// Summary aggregates all valid feedback. Submissions with any non-positive
// rating are counted in Total only.
type Summary struct {
	Total              int            `json:"total"`
	Count              int            `json:"count"`
	Averages           Averages       `json:"averages"`
	RatingDistribution Distribution   `json:"ratingDistribution"`
	Events             []EventSummary `json:"events"`
}

type accumulator struct {
	rating, experience, speaker, relevance float64
	n                                      int
}

func (a *accumulator) add(f Feedback) {
	a.rating += f.Rating
	a.experience += f.EventExperience
	a.speaker += f.SpeakerInteraction
	a.relevance += f.SessionRelevance
	a.n++
}

func (a *accumulator) averages() Averages {
	if a.n == 0 {
		return Averages{}
	}
	n := float64(a.n)
	return Averages{
		Rating:             round1(a.rating / n),
		EventExperience:    round1(a.experience / n),
		SpeakerInteraction: round1(a.speaker / n),
		SessionRelevance:   round1(a.relevance / n),
	}
}

type eventAcc struct {
	summary EventSummary
	acc     accumulator
	users   map[string]struct{}
}

// Summarize computes overall and per-event statistics. Events appear in the
// order of their first submission.
func Summarize(items []Feedback) *Summary {
	s := &Summary{Total: len(items), Events: []EventSummary{}}

	var overall accumulator
	var order []string
	events := make(map[string]*eventAcc)

	for _, f := range items {
		if !valid(f) {
			continue
		}

		overall.add(f)
		s.RatingDistribution.add(f.Rating)

		ev, ok := events[f.EventID]
		if !ok {
			ev = &eventAcc{
				summary: EventSummary{
					EventID:     f.EventID,
					EventName:   f.EventName,
					Suggestions: []string{},
				},
				users: make(map[string]struct{}),
			}
			if ev.summary.EventName == "" {
				ev.summary.EventName = UnknownEvent
			}
			events[f.EventID] = ev
			order = append(order, f.EventID)
		}

		ev.acc.add(f)
		ev.summary.RatingDistribution.add(f.Rating)
		if f.UserID != "" {
			ev.users[f.UserID] = struct{}{}
		}
		if f.Suggestions != "" {
			ev.summary.Suggestions = append(ev.summary.Suggestions, f.Suggestions)
		}
	}

	s.Count = overall.n
	s.Averages = overall.averages()

	for _, id := range order {
		ev := events[id]
		ev.summary.Count = ev.acc.n
		ev.summary.UniqueUsers = len(ev.users)
		ev.summary.Averages = ev.acc.averages()
		ev.summary.SentimentScore = round1(ev.summary.Averages.Rating / 5 * 100)
		s.Events = append(s.Events, ev.summary)
	}

	return s
}

func (d *Distribution) add(rating float64) {
	r := int(math.Round(rating))
	if r >= 1 && r <= 5 {
		d[r-1]++
	}
}

func valid(f Feedback) bool {
	return f.Rating > 0 && f.EventExperience > 0 && f.SpeakerInteraction > 0 && f.SessionRelevance > 0
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
