// Package profile holds the student and mentor records accepted by the matching API.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errNotObject = errors.New("record must be a JSON object")

// maxExactInt is the bound below which every integer is exact in a float64.
const maxExactInt = 1 << 53

// Ref is an identifier that may arrive as a JSON string or number.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	if f, err := n.Float64(); err == nil && math.Abs(f) < maxExactInt && f == math.Trunc(f) {
		*r = Ref(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*r = Ref(n.String())
	return nil
}

func (r Ref) String() string { return string(r) }

// Tag is a skill or an interest. Both {"name": "go"} and "go" are accepted.
type Tag struct {
	Name string `json:"name"`
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Name)
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("tag must be a string or an object with a name: %w", err)
	}
	t.Name = obj.Name
	return nil
}

// Industry references an industry by id. Both {"id": 3} and a bare id are accepted.
type Industry struct {
	ID Ref `json:"id"`
}

func (i *Industry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID Ref `json:"id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		i.ID = obj.ID
		return nil
	}
	return i.ID.UnmarshalJSON(data)
}

// Profile carries the attributes shared by students and mentors.
type Profile struct {
	Skills          []Tag     `json:"skills"`
	Industry        *Industry `json:"industry"`
	Interests       []Tag     `json:"interests"`
	Location        string    `json:"location"`
	ExperienceYears float64   `json:"experienceYears"`
	Bio             *string   `json:"bio"`
}

// IndustryID returns the industry id or an empty string when it is missing.
func (p *Profile) IndustryID() string {
	if p == nil || p.Industry == nil {
		return ""
	}
	return strings.TrimSpace(p.Industry.ID.String())
}

// HasBio reports whether the bio key was present in the input.
func (p *Profile) HasBio() bool {
	return p != nil && p.Bio != nil
}

// SkillNames returns the skill names in input order.
func (p *Profile) SkillNames() []string {
	return names(p.Skills)
}

// InterestNames returns the interest names in input order.
func (p *Profile) InterestNames() []string {
	return names(p.Interests)
}

func names(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

type Student struct {
	Profile
}

type Mentor struct {
	Profile
	ID           Ref     `json:"id"`
	Name         string  `json:"name"`
	Rating       float64 `json:"rating"`
	TotalMentees float64 `json:"totalMentees"`
}

// DecodeStudent parses a student object.
func DecodeStudent(data []byte) (*Student, error) {
	if !isObject(data) {
		return nil, fmt.Errorf("student: %w", errNotObject)
	}

	var s Student
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("student: %w", err)
	}
	return &s, nil
}

// MentorRecord keeps the raw mentor object next to its typed view so the
// response can echo every input field back.
type MentorRecord struct {
	Index  int
	Raw    map[string]any
	Mentor *Mentor
}

// Label identifies the record in logs and error reports.
func (r *MentorRecord) Label() string {
	if r == nil || r.Mentor == nil {
		return ""
	}
	if id := r.Mentor.ID.String(); id != "" {
		return id
	}
	return r.Mentor.Name
}

// DecodeMentor parses one mentor object.
func DecodeMentor(index int, data []byte) (*MentorRecord, error) {
	if !isObject(data) {
		return nil, errNotObject
	}

	raw := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var m Mentor
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &MentorRecord{Index: index, Raw: raw, Mentor: &m}, nil
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
