package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// #region category

// Category classifies what kind of answer a question admits.
type Category string

const (
	CategoryFactual      Category = "factual"
	CategoryAmbiguous    Category = "ambiguous"
	CategoryUnanswerable Category = "unanswerable"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryFactual, CategoryAmbiguous, CategoryUnanswerable}

// ParseCategory maps a case-insensitive name to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFactual, CategoryAmbiguous, CategoryUnanswerable:
		return true
	}
	return false
}

// Order returns the position of c in Categories, or len(Categories) if unknown.
func (c Category) Order() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// #endregion category

// #region question

// Question is one labeled probe. GoldAnswer is nil when no canonical answer exists.
type Question struct {
	ID         string
	Category   Category
	Text       string
	GoldAnswer *string
	Aliases    []string
}

// Gold returns the gold answer, or "" when there is none.
func (q Question) Gold() string {
	if q.GoldAnswer == nil {
		return ""
	}
	return *q.GoldAnswer
}

// HasGold reports whether the question carries a non-blank gold answer.
func (q Question) HasGold() bool {
	return strings.TrimSpace(q.Gold()) != ""
}

// AcceptedAnswers returns the gold answer followed by its aliases, blanks removed.
func (q Question) AcceptedAnswers() []string {
	var out []string
	if q.HasGold() {
		out = append(out, q.Gold())
	}
	for _, a := range q.Aliases {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}

// #endregion question

// #region record-error

var (
	// ErrMalformed marks a record that could not be parsed or lacks required fields.
	ErrMalformed = errors.New("malformed record")
	// ErrMissingGold marks a factual question without a gold answer.
	ErrMissingGold = errors.New("factual question has no gold answer")
	// ErrDuplicateID marks a question whose id was already seen.
	ErrDuplicateID = errors.New("duplicate question id")
)

// RecordError reports a per-record data problem. The record is excluded
// downstream; the run continues.
type RecordError struct {
	Line       int
	QuestionID string
	Condition  string
	Err        error
}

func (e *RecordError) Error() string {
	var loc []string
	if e.Line > 0 {
		loc = append(loc, fmt.Sprintf("line %d", e.Line))
	}
	if e.QuestionID != "" {
		loc = append(loc, "question "+e.QuestionID)
	}
	if e.Condition != "" {
		loc = append(loc, "condition "+e.Condition)
	}
	if len(loc) == 0 {
		return e.Err.Error()
	}
	return strings.Join(loc, ", ") + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// #endregion record-error
