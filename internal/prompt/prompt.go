package prompt

import (
	"fmt"
	"strings"
)

// #region condition

// Condition is a prompting strategy applied uniformly across the dataset.
type Condition string

const (
	Baseline        Condition = "baseline"
	AbstainIfUnsure Condition = "abstain_if_unsure"
	CiteOrAbstain   Condition = "cite_or_abstain"
)

// All lists every condition in report order.
var All = []Condition{Baseline, AbstainIfUnsure, CiteOrAbstain}

// ParseCondition maps a name to a Condition. "abstain" is accepted as the
// older spelling of abstain_if_unsure.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Baseline):
		return Baseline, nil
	case string(AbstainIfUnsure), "abstain":
		return AbstainIfUnsure, nil
	case string(CiteOrAbstain):
		return CiteOrAbstain, nil
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

// ParseConditions parses a list of names. An empty list or "all" selects every
// condition. Duplicates are dropped; report order is preserved.
func ParseConditions(names []string) ([]Condition, error) {
	want := make(map[Condition]bool)
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.EqualFold(part, "all") {
				return append([]Condition(nil), All...), nil
			}
			c, err := ParseCondition(part)
			if err != nil {
				return nil, err
			}
			want[c] = true
		}
	}
	if len(want) == 0 {
		return append([]Condition(nil), All...), nil
	}
	out := make([]Condition, 0, len(want))
	for _, c := range All {
		if want[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	_, ok := instructions[c]
	return ok
}

// Order returns the position of c in All, or len(All) if unknown.
func (c Condition) Order() int {
	for i, known := range All {
		if c == known {
			return i
		}
	}
	return len(All)
}

// UnmarshalText lets JSON and CSV decoders accept any spelling ParseCondition does.
func (c *Condition) UnmarshalText(text []byte) error {
	parsed, err := ParseCondition(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// #endregion condition

// #region templates

const answerFormat = "At the end, provide a confidence score from 0-100.\n\n" +
	"Format your response as:\nAnswer: <your answer>\nConfidence: <number>"

var instructions = map[Condition]string{
	Baseline: "Answer the following question. " + answerFormat,
	AbstainIfUnsure: "Answer the following question. If you are not sure, say 'I don't know'.\n" +
		answerFormat,
	CiteOrAbstain: "Only answer if you are confident and can cite a source type " +
		"(e.g., official site, encyclopedia). Otherwise say 'I don't know'.\n" +
		answerFormat,
}

// Instruction returns the instruction prefix for c. Unknown conditions fall
// back to the baseline instruction.
func (c Condition) Instruction() string {
	if s, ok := instructions[c]; ok {
		return s
	}
	return instructions[Baseline]
}

// Render builds the full prompt sent to the model.
func Render(c Condition, question string) string {
	return c.Instruction() + "\n\nQuestion: " + strings.TrimSpace(question)
}

// #endregion templates
