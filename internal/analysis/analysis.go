package analysis

import (
	"math"
	"sort"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// calibrationBins is the number of equal-width bins used for expected calibration error.
const calibrationBins = 10

// #region summarize

// Summarize groups scored records by condition. Output follows canonical
// condition order; unknown conditions sort last by name.
func Summarize(scored []records.Scored) []Summary {
	groups := make(map[prompt.Condition][]records.Scored)
	for _, s := range scored {
		groups[s.Condition] = append(groups[s.Condition], s)
	}
	conds := make([]prompt.Condition, 0, len(groups))
	for c := range groups {
		conds = append(conds, c)
	}
	sort.Slice(conds, func(i, j int) bool { return lessCondition(conds[i], conds[j]) })

	out := make([]Summary, 0, len(conds))
	for _, c := range conds {
		sum := summarizeGroup(groups[c])
		sum.Condition = c
		out = append(out, sum)
	}
	return out
}

// SummarizeByCategory groups scored records by (condition, category).
func SummarizeByCategory(scored []records.Scored) []Summary {
	type key struct {
		cond prompt.Condition
		cat  dataset.Category
	}
	groups := make(map[key][]records.Scored)
	for _, s := range scored {
		k := key{s.Condition, s.Category}
		groups[k] = append(groups[k], s)
	}
	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cond != keys[j].cond {
			return lessCondition(keys[i].cond, keys[j].cond)
		}
		oi, oj := keys[i].cat.Order(), keys[j].cat.Order()
		if oi != oj {
			return oi < oj
		}
		return keys[i].cat < keys[j].cat
	})

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		sum := summarizeGroup(groups[k])
		sum.Condition = k.cond
		sum.Category = k.cat
		out = append(out, sum)
	}
	return out
}

func lessCondition(a, b prompt.Condition) bool {
	oa, ob := a.Order(), b.Order()
	if oa != ob {
		return oa < ob
	}
	return a < b
}

// #endregion

// #region group

func summarizeGroup(group []records.Scored) Summary {
	var (
		s                           Summary
		all, correct, wrong, halluc []float64
		outcomes                    []float64
	)
	for _, r := range group {
		s.N++
		switch r.Label {
		case records.LabelCorrect:
			s.Correct++
		case records.LabelAbstained:
			s.Abstained++
		case records.LabelHallucinated:
			s.Hallucinated++
		}
		if r.Confidence == nil {
			continue
		}
		c := *r.Confidence
		all = append(all, c)
		if r.Label == records.LabelCorrect {
			correct = append(correct, c)
			outcomes = append(outcomes, 1)
		} else {
			wrong = append(wrong, c)
			outcomes = append(outcomes, 0)
		}
		if r.Label == records.LabelHallucinated {
			halluc = append(halluc, c)
		}
	}
	if s.N == 0 {
		return s
	}

	n := float64(s.N)
	s.Accuracy = float64(s.Correct) / n
	s.HallucinationRate = float64(s.Hallucinated) / n
	s.AbstentionRate = float64(s.Abstained) / n
	s.ConfidenceCoverage = float64(len(all)) / n

	s.MeanConfidence = mean(all)
	s.MeanConfidenceCorrect = mean(correct)
	s.MeanConfidenceWrong = mean(wrong)
	s.MeanConfidenceHallucinated = mean(halluc)
	s.BrierScore = Brier(all, outcomes)
	s.CalibrationError = ExpectedCalibrationError(all, outcomes, calibrationBins)
	return s
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}

// #endregion

// #region calibration

// Brier returns the mean squared difference between confidence and outcome
// (1 correct, 0 otherwise), or nil for no samples.
func Brier(conf, outcome []float64) *float64 {
	if len(conf) == 0 || len(conf) != len(outcome) {
		return nil
	}
	var sum float64
	for i := range conf {
		d := conf[i] - outcome[i]
		sum += d * d
	}
	b := sum / float64(len(conf))
	return &b
}

// ExpectedCalibrationError bins confidences into equal-width bins and returns
// the sample-weighted mean |accuracy - mean confidence| across bins.
func ExpectedCalibrationError(conf, outcome []float64, bins int) *float64 {
	if len(conf) == 0 || len(conf) != len(outcome) || bins <= 0 {
		return nil
	}
	count := make([]int, bins)
	confSum := make([]float64, bins)
	hitSum := make([]float64, bins)
	for i, c := range conf {
		b := int(math.Floor(c * float64(bins)))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		count[b]++
		confSum[b] += c
		hitSum[b] += outcome[i]
	}
	var ece float64
	total := float64(len(conf))
	for b := range count {
		if count[b] == 0 {
			continue
		}
		k := float64(count[b])
		ece += k / total * math.Abs(hitSum[b]/k-confSum[b]/k)
	}
	return &ece
}

// #endregion
