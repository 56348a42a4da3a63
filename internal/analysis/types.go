package analysis

import (
	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

// #region summary

// Summary aggregates scored records for one condition, or one
// (condition, category) cell when Category is set.
type Summary struct {
	Condition prompt.Condition `json:"condition"`
	Category  dataset.Category `json:"category,omitempty"`

	N            int `json:"n"`
	Correct      int `json:"correct"`
	Abstained    int `json:"abstained"`
	Hallucinated int `json:"hallucinated"`

	Accuracy          float64 `json:"accuracy"`
	HallucinationRate float64 `json:"hallucination_rate"`
	AbstentionRate    float64 `json:"abstention_rate"`

	// Confidence statistics are nil when no record in the group reported one.
	MeanConfidence             *float64 `json:"mean_confidence"`
	MeanConfidenceCorrect      *float64 `json:"mean_confidence_when_correct"`
	MeanConfidenceWrong        *float64 `json:"mean_confidence_when_wrong"`
	MeanConfidenceHallucinated *float64 `json:"mean_confidence_when_hallucinated"`
	BrierScore                 *float64 `json:"brier_score"`
	CalibrationError           *float64 `json:"expected_calibration_error"`
	// ConfidenceCoverage is the share of records carrying a confidence.
	ConfidenceCoverage float64 `json:"confidence_coverage"`
}

// #endregion

// #region metric

// Metric selects one rate from a Summary for charts and threshold checks.
type Metric string

const (
	MetricAccuracy          Metric = "accuracy"
	MetricHallucinationRate Metric = "hallucination_rate"
	MetricAbstentionRate    Metric = "abstention_rate"
)

// Value returns the metric's value in s.
func (m Metric) Value(s Summary) float64 {
	switch m {
	case MetricAccuracy:
		return s.Accuracy
	case MetricHallucinationRate:
		return s.HallucinationRate
	case MetricAbstentionRate:
		return s.AbstentionRate
	}
	return 0
}

// Title is the human-readable metric name.
func (m Metric) Title() string {
	switch m {
	case MetricAccuracy:
		return "Accuracy"
	case MetricHallucinationRate:
		return "Hallucination rate"
	case MetricAbstentionRate:
		return "Abstention rate"
	}
	return string(m)
}

// #endregion
