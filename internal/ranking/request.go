package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spigell/mentormatch/internal/profile"
	"github.com/spigell/mentormatch/internal/validation"
)

// Request is the body of a ranking call. Mentors are kept raw so that one bad
// entry fails alone.
type Request struct {
	Student json.RawMessage   `json:"student" validate:"required"`
	Mentors []json.RawMessage `json:"mentors" validate:"required"`
}

// Validate treats a JSON null student like a missing one.
func (r *Request) Validate() error {
	if bytes.Equal(bytes.TrimSpace(r.Student), []byte("null")) {
		return validation.Missing("student")
	}
	return validation.Struct(r)
}

// DecodeRequest reads and validates a Request.
func DecodeRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, validation.Malformed(err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// WithTimeout bounds every Handle call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// Handle decodes the student and ranks the request's mentors.
func (s *Service) Handle(ctx context.Context, req *Request) (*Result, error) {
	student, err := profile.DecodeStudent(req.Student)
	if err != nil {
		return nil, validation.Invalid("student", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.Rank(ctx, student, req.Mentors)
}
