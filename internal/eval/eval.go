package eval

import (
	"fmt"

	"github.com/danielpatrickdp/halluprobe/internal/analysis"
)

// #region eval-harness
// EvalHarness checks per-condition summaries against fixed thresholds.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks every condition-level summary. Per-category summaries are skipped.
// Calibration is only checked where confidence was reported.
func (h *EvalHarness) Run(sums []analysis.Summary) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(s analysis.Summary, name string, value, limit float64, pass bool, format string) {
		metrics = append(metrics, EvalMetric{
			Name:      name,
			Condition: s.Condition,
			Value:     value,
			Limit:     limit,
			Pass:      pass,
		})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf("%s: "+format, s.Condition, value, limit))
		}
	}

	for _, s := range sums {
		if s.Category != "" || s.N == 0 {
			continue
		}
		if limit := h.config.MaxHallucinationRate; limit > 0 {
			check(s, "hallucination_rate", s.HallucinationRate, limit,
				s.HallucinationRate <= limit, "hallucination rate %.3f exceeds %.3f")
		}
		if limit := h.config.MinAccuracy; limit > 0 {
			check(s, "accuracy", s.Accuracy, limit,
				s.Accuracy >= limit, "accuracy %.3f below %.3f")
		}
		if limit := h.config.MaxCalibrationError; limit > 0 && s.CalibrationError != nil {
			ece := *s.CalibrationError
			check(s, "calibration_error", ece, limit,
				ece <= limit, "calibration error %.3f exceeds %.3f")
		}
	}

	passed := len(failReasons) == 0
	reason := "all checks passed"
	switch {
	case len(metrics) == 0:
		reason = "no checks configured"
	case len(failReasons) == 1:
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	case len(failReasons) > 1:
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
