package score

// #region imports
import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// #endregion

// #region errors

var (
	// ErrMissingGold is returned for a factual question without a gold answer.
	ErrMissingGold = dataset.ErrMissingGold
	// ErrUnknownQuestion is returned when a generation names a question not in the dataset.
	ErrUnknownQuestion = errors.New("generation references unknown question")
)

// #endregion

// #region config

// Config controls label assignment.
type Config struct {
	// MatchThreshold is the answer similarity needed for a correct label, in (0, 1].
	MatchThreshold float64
	// Lexicon holds the abstention phrases. Nil means DefaultLexicon.
	Lexicon *Lexicon
}

// DefaultConfig returns exact matching against the built-in lexicon.
func DefaultConfig() Config {
	return Config{MatchThreshold: 1.0, Lexicon: DefaultLexicon()}
}

// #endregion

// #region classifier

// Result is the outcome of classifying one response.
type Result struct {
	Label      records.Label
	Confidence *float64
	Reason     string
}

// Classifier maps raw model output to a label. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	matcher *Matcher
	lexicon *Lexicon
}

// NewClassifier validates cfg and builds a Classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	m, err := NewMatcher(cfg.MatchThreshold)
	if err != nil {
		return nil, err
	}
	lex := cfg.Lexicon
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Classifier{matcher: m, lexicon: lex}, nil
}

// Classify labels output as an answer to q. Precedence: abstention phrase,
// empty output, unanswerable category, missing gold, answer match.
func (c *Classifier) Classify(q dataset.Question, output string) (Result, error) {
	if q.Category == dataset.CategoryFactual && !q.HasGold() {
		return Result{}, ErrMissingGold
	}

	res := Result{Confidence: ExtractConfidence(output)}
	body := StripConfidence(output)

	if phrase, ok := c.lexicon.Match(body); ok {
		res.Label = records.LabelAbstained
		res.Reason = fmt.Sprintf("abstention phrase %q", phrase)
		return res, nil
	}

	if len(Tokens(stripAnswerTag(body))) == 0 {
		if c.lexicon.EmptyIsAbstention {
			res.Label = records.LabelAbstained
			res.Reason = "empty output treated as abstention"
		} else {
			res.Label = records.LabelHallucinated
			res.Reason = "empty output"
		}
		return res, nil
	}

	switch {
	case q.Category == dataset.CategoryUnanswerable:
		res.Label = records.LabelHallucinated
		res.Reason = "answered an unanswerable question"
	case !q.HasGold() && len(q.AcceptedAnswers()) == 0:
		res.Label = records.LabelHallucinated
		res.Reason = "committed to an answer where none is canonical"
	default:
		if ans, ok := c.matcher.Match(body, q.AcceptedAnswers()); ok {
			res.Label = records.LabelCorrect
			res.Reason = fmt.Sprintf("matched %q", ans)
		} else {
			res.Label = records.LabelHallucinated
			res.Reason = "no accepted answer found"
		}
	}
	return res, nil
}

// Score classifies one generation against its question.
func (c *Classifier) Score(gen records.Generation, q dataset.Question) (records.Scored, error) {
	res, err := c.Classify(q, gen.RawOutput)
	if err != nil {
		return records.Scored{}, err
	}
	return records.Scored{
		RunID:      gen.RunID,
		QuestionID: gen.QuestionID,
		Category:   q.Category,
		Condition:  gen.Condition,
		Label:      res.Label,
		Confidence: res.Confidence,
		Reason:     res.Reason,
	}, nil
}

// ScoreAll scores every generation in input order. Data problems are collected
// as RecordErrors and the offending generation is skipped.
func (c *Classifier) ScoreAll(questions []dataset.Question, gens []records.Generation) ([]records.Scored, []*dataset.RecordError) {
	idx := dataset.Index(questions)
	out := make([]records.Scored, 0, len(gens))
	var issues []*dataset.RecordError
	for _, g := range gens {
		q, ok := idx[g.QuestionID]
		if !ok {
			issues = append(issues, &dataset.RecordError{QuestionID: g.QuestionID, Condition: string(g.Condition), Err: ErrUnknownQuestion})
			continue
		}
		s, err := c.Score(g, q)
		if err != nil {
			issues = append(issues, &dataset.RecordError{QuestionID: g.QuestionID, Condition: string(g.Condition), Err: err})
			continue
		}
		out = append(out, s)
	}
	return out, issues
}

// #endregion

// #region helpers

// stripAnswerTag drops a bare "Answer:" scaffold so "Answer:\nConfidence: 0"
// still counts as empty.
func stripAnswerTag(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= len("answer:") && strings.EqualFold(t[:len("answer:")], "answer:") {
		return t[len("answer:"):]
	}
	return t
}

// #endregion
