package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// unanswerableSentinel is the gold answer older question files use instead of a category.
const unanswerableSentinel = "UNANSWERABLE"

// #region raw-question

// rawQuestion accepts both the current field names and the older
// question/answer spelling.
type rawQuestion struct {
	ID         json.RawMessage `json:"id"`
	Category   string          `json:"category"`
	Text       string          `json:"text"`
	Question   string          `json:"question"`
	GoldAnswer *string         `json:"gold_answer"`
	Answer     *string         `json:"answer"`
	Aliases    []string        `json:"aliases"`
}

// #endregion raw-question

// #region load

// LoadQuestions reads a JSONL question file. Records that fail validation are
// returned as RecordErrors and left out of the question slice.
func LoadQuestions(path string) ([]Question, []*RecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open questions %s: %w", path, err)
	}
	defer f.Close()
	return ParseQuestions(f)
}

// ParseQuestions reads JSONL questions from r. Blank lines are skipped.
func ParseQuestions(r io.Reader) ([]Question, []*RecordError, error) {
	var (
		questions []Question
		issues    []*RecordError
		seen      = make(map[string]bool)
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		q, err := parseQuestion(raw)
		if err != nil {
			issues = append(issues, &RecordError{Line: line, QuestionID: q.ID, Err: err})
			continue
		}
		if seen[q.ID] {
			issues = append(issues, &RecordError{Line: line, QuestionID: q.ID, Err: ErrDuplicateID})
			continue
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, issues, nil
}

// #endregion load

// #region parse

func parseQuestion(line []byte) (Question, error) {
	var rq rawQuestion
	if err := json.Unmarshal(line, &rq); err != nil {
		return Question{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	q := Question{
		ID:      idString(rq.ID),
		Text:    strings.TrimSpace(firstNonEmpty(rq.Text, rq.Question)),
		Aliases: rq.Aliases,
	}
	if q.ID == "" {
		return q, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if q.Text == "" {
		return q, fmt.Errorf("%w: missing question text", ErrMalformed)
	}

	gold := rq.GoldAnswer
	if gold == nil {
		gold = rq.Answer
	}
	sentinel := gold != nil && strings.EqualFold(strings.TrimSpace(*gold), unanswerableSentinel)
	if sentinel {
		gold = nil
	}
	q.GoldAnswer = gold

	switch {
	case strings.TrimSpace(rq.Category) != "":
		c, err := ParseCategory(rq.Category)
		if err != nil {
			return q, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		q.Category = c
	case sentinel:
		q.Category = CategoryUnanswerable
	default:
		q.Category = CategoryFactual
	}

	if q.Category == CategoryFactual && !q.HasGold() {
		return q, ErrMissingGold
	}
	return q, nil
}

// idString accepts either a JSON string or a bare number as an id.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// #endregion parse

// Index maps question ids to questions.
func Index(questions []Question) map[string]Question {
	idx := make(map[string]Question, len(questions))
	for _, q := range questions {
		idx[q.ID] = q
	}
	return idx
}
