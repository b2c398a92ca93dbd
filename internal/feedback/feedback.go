// Package feedback collects event feedback and summarizes it.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/mentormatch/internal/validation"
)

// UnknownEvent names events missing from the catalog.
const UnknownEvent = "Unknown Event"

// DefaultEvents is the catalog used when none is configured.
var DefaultEvents = map[string]string{
	"event1": "Tech Career Workshop",
	"event2": "Resume Building Session",
	"event3": "Interview Preparation Seminar",
	"event4": "Networking Masterclass",
	"event5": "Industry Insights Panel",
}

// Feedback is one stored submission.
type Feedback struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"eventId"`
	EventName          string    `json:"eventName"`
	Rating             float64   `json:"rating"`
	EventExperience    float64   `json:"eventExperience"`
	SpeakerInteraction float64   `json:"speakerInteraction"`
	SessionRelevance   float64   `json:"sessionRelevance"`
	Suggestions        string    `json:"suggestions"`
	UserID             string    `json:"userId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Submission is the body of a feedback request. Required fields are pointers
// so that a present zero is told apart from a missing field.
type Submission struct {
	EventID            *string  `json:"eventId" validate:"required"`
	Rating             *float64 `json:"rating" validate:"required"`
	EventExperience    *float64 `json:"eventExperience" validate:"required"`
	SpeakerInteraction *float64 `json:"speakerInteraction" validate:"required"`
	SessionRelevance   *float64 `json:"sessionRelevance" validate:"required"`
	Suggestions        string   `json:"suggestions"`
	UserID             string   `json:"userId"`
}

func (s *Submission) Validate() error {
	return validation.Struct(s)
}

// Store persists feedback in insertion order.
type Store interface {
	Append(ctx context.Context, f Feedback) error
	List(ctx context.Context) ([]Feedback, error)
}

// Service validates submissions and reads them back.
type Service struct {
	store  Store
	events map[string]string
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store Store, events map[string]string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(events) == 0 {
		events = DefaultEvents
	}

	catalog := make(map[string]string, len(events))
	for id, name := range events {
		catalog[id] = name
	}

	return &Service{
		store:  store,
		events: catalog,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// EventName looks an event up in the catalog.
func (s *Service) EventName(id string) string {
	if name, ok := s.events[id]; ok {
		return name
	}
	return UnknownEvent
}

// Submit validates sub and stores it.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*Feedback, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	f := Feedback{
		ID:                 s.newID(),
		EventID:            *sub.EventID,
		EventName:          s.EventName(*sub.EventID),
		Rating:             *sub.Rating,
		EventExperience:    *sub.EventExperience,
		SpeakerInteraction: *sub.SpeakerInteraction,
		SessionRelevance:   *sub.SessionRelevance,
		Suggestions:        strings.TrimSpace(sub.Suggestions),
		UserID:             strings.TrimSpace(sub.UserID),
		CreatedAt:          s.now().UTC().Truncate(time.Second),
	}

	if err := s.store.Append(ctx, f); err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}

	s.logger.Info("feedback stored",
		zap.String("feedback_id", f.ID),
		zap.String("event_id", f.EventID),
		zap.Float64("rating", f.Rating),
	)

	return &f, nil
}

// List returns every stored submission.
func (s *Service) List(ctx context.Context) ([]Feedback, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if items == nil {
		items = []Feedback{}
	}
	return items, nil
}

// Summary aggregates every stored submission.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(items), nil
}
