package eval

import "github.com/danielpatrickdp/halluprobe/internal/prompt"

// #region eval-config
// EvalConfig holds per-condition thresholds. A zero value disables that check.
type EvalConfig struct {
	MaxHallucinationRate float64 `mapstructure:"max_hallucination_rate"`
	MinAccuracy          float64 `mapstructure:"min_accuracy"`
	MaxCalibrationError  float64 `mapstructure:"max_calibration_error"`
}

// DefaultEvalConfig disables every check.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{}
}

// Enabled reports whether any threshold is set.
func (c EvalConfig) Enabled() bool {
	return c.MaxHallucinationRate > 0 || c.MinAccuracy > 0 || c.MaxCalibrationError > 0
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single threshold check for one condition.
type EvalMetric struct {
	Name      string
	Condition prompt.Condition
	Value     float64
	Limit     float64
	Pass      bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of checking a set of summaries.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
