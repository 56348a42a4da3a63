package replay

import (
	"math"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/score"
)

// confidenceTolerance is how far a replayed confidence may drift from the fixture.
const confidenceTolerance = 1e-6

// #region types

// ReplayResult captures the outcome of re-scoring one fixture case.
type ReplayResult struct {
	CaseID   string
	Expected records.Label
	Replayed records.Label
	Reason   string

	ExpectedConfidence *float64
	Confidence         *float64

	// Err is set when the case could not be scored at all.
	Err   error
	Match bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases   int
	Matches      int
	Divergences  int
	Errors       int
	Correct      int
	Abstained    int
	Hallucinated int
}

// Passed reports whether every case replayed to its expected label.
func (s ReplaySummary) Passed() bool {
	return s.Divergences == 0 && s.Errors == 0
}

// #endregion types

// #region replay

// Replay re-scores every case with the fixture's scoring config. Operates
// entirely in-memory; an invalid config fails every case with the same error.
func Replay(f *Fixture) []ReplayResult {
	results := make([]ReplayResult, 0, len(f.Cases))
	classifier, cfgErr := score.NewClassifier(f.Config.ToScoreConfig())

	for i := range f.Cases {
		c := &f.Cases[i]
		r := ReplayResult{
			CaseID:             c.ID,
			Expected:           c.ExpectedLabel,
			ExpectedConfidence: c.ExpectedConfidence,
		}
		if cfgErr != nil {
			r.Err = cfgErr
			results = append(results, r)
			continue
		}

		res, err := classifier.Classify(c.ToQuestion(), c.RawOutput)
		if err != nil {
			r.Err = err
			results = append(results, r)
			continue
		}
		r.Replayed = res.Label
		r.Reason = res.Reason
		r.Confidence = res.Confidence
		r.Match = res.Label == c.ExpectedLabel && confidenceMatches(c.ExpectedConfidence, res.Confidence)
		results = append(results, r)
	}

	return results
}

// confidenceMatches only checks confidence when the fixture pins one.
func confidenceMatches(want, got *float64) bool {
	if want == nil {
		return true
	}
	return got != nil && math.Abs(*want-*got) <= confidenceTolerance
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errors++
			continue
		case r.Match:
			s.Matches++
		default:
			s.Divergences++
		}
		switch r.Replayed {
		case records.LabelCorrect:
			s.Correct++
		case records.LabelAbstained:
			s.Abstained++
		case records.LabelHallucinated:
			s.Hallucinated++
		}
	}
	return s
}

// #endregion replay

// #region export

// FromScored builds a fixture that pins the labels in scored against the
// outputs in gens. Records whose generation or question is missing are skipped.
func FromScored(description string, questions []dataset.Question, gens []records.Generation, scored []records.Scored) *Fixture {
	type key struct{ id, cond string }
	outputs := make(map[key]string, len(gens))
	for _, g := range gens {
		outputs[key{g.QuestionID, string(g.Condition)}] = g.RawOutput
	}
	idx := dataset.Index(questions)

	f := &Fixture{Description: description}
	for _, s := range scored {
		out, ok := outputs[key{s.QuestionID, string(s.Condition)}]
		if !ok {
			continue
		}
		q, ok := idx[s.QuestionID]
		if !ok {
			continue
		}
		f.Cases = append(f.Cases, FixtureCase{
			ID:                 s.QuestionID + "/" + string(s.Condition),
			Category:           q.Category,
			Question:           q.Text,
			GoldAnswer:         q.GoldAnswer,
			Aliases:            q.Aliases,
			Condition:          s.Condition,
			RawOutput:          out,
			ExpectedLabel:      s.Label,
			ExpectedConfidence: s.Confidence,
		})
	}
	return f
}

// #endregion export
