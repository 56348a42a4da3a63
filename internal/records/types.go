package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

// #region label

// Label is the outcome assigned to one model response.
type Label string

const (
	LabelCorrect      Label = "correct"
	LabelAbstained    Label = "abstained"
	LabelHallucinated Label = "hallucinated"
)

// Labels lists every label in report order.
var Labels = []Label{LabelCorrect, LabelAbstained, LabelHallucinated}

// ParseLabel maps a case-insensitive name to a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown label %q", s)
	}
	return l, nil
}

// Valid reports whether l is one of the three labels.
func (l Label) Valid() bool {
	switch l {
	case LabelCorrect, LabelAbstained, LabelHallucinated:
		return true
	}
	return false
}

// #endregion label

// #region generation

// Generation is the verbatim model output for one (question, condition) pair.
type Generation struct {
	RunID      string           `json:"run_id,omitempty"`
	QuestionID string           `json:"question_id"`
	Category   dataset.Category `json:"category,omitempty"`
	Condition  prompt.Condition `json:"condition"`
	Question   string           `json:"question,omitempty"`
	GoldAnswer *string          `json:"gold_answer,omitempty"`
	RawOutput  string           `json:"raw_output"`
	Provider   string           `json:"provider,omitempty"`
	Model      string           `json:"model,omitempty"`
	LatencyMS  int64            `json:"latency_ms,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// legacyGeneration carries the field names older generation files used.
type legacyGeneration struct {
	ID       json.RawMessage `json:"id"`
	RawText  *string         `json:"raw_text"`
	Expected *string         `json:"expected"`
	// timestamp was written without a zone designator in some files
	Timestamp string `json:"timestamp"`
}

// UnmarshalJSON accepts both the current layout and the older
// id/raw_text/expected/timestamp layout.
func (g *Generation) UnmarshalJSON(data []byte) error {
	type plain Generation
	var cur struct {
		plain
		CreatedAt *time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(data, &cur); err != nil {
		return err
	}
	var old legacyGeneration
	if err := json.Unmarshal(data, &old); err != nil {
		return err
	}

	*g = Generation(cur.plain)
	if cur.CreatedAt != nil {
		g.CreatedAt = *cur.CreatedAt
	} else if old.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, old.Timestamp); err == nil {
			g.CreatedAt = ts
		}
	}
	if g.QuestionID == "" && len(old.ID) > 0 {
		g.QuestionID = strings.Trim(strings.TrimSpace(string(old.ID)), `"`)
	}
	if g.RawOutput == "" && old.RawText != nil {
		g.RawOutput = *old.RawText
	}
	if g.GoldAnswer == nil && old.Expected != nil {
		g.GoldAnswer = old.Expected
	}
	return nil
}

// #endregion generation

// #region scored

// Scored is the classification of one Generation.
type Scored struct {
	RunID      string           `json:"run_id,omitempty"`
	QuestionID string           `json:"question_id"`
	Category   dataset.Category `json:"category"`
	Condition  prompt.Condition `json:"condition"`
	Label      Label            `json:"label"`
	Confidence *float64         `json:"confidence"`
	Reason     string           `json:"reason,omitempty"`
}

// #endregion scored
