package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
)

// #region new
// New builds the process logger. Output goes to stderr so stdout stays clean
// for tables and paths.
func New(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.DisableStacktrace = true
	config.Sampling = nil
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// #endregion new

// #region record-errors
// RecordErrors logs each data error at warn level and returns how many there were.
func RecordErrors(logger *zap.Logger, stage string, issues []*dataset.RecordError) int {
	for _, is := range issues {
		fields := []zap.Field{zap.String("stage", stage), zap.Error(is.Err)}
		if is.Line > 0 {
			fields = append(fields, zap.Int("line", is.Line))
		}
		if is.QuestionID != "" {
			fields = append(fields, zap.String("question_id", is.QuestionID))
		}
		if is.Condition != "" {
			fields = append(fields, zap.String("condition", is.Condition))
		}
		logger.Warn("skipping record", fields...)
	}
	return len(issues)
}

// #endregion record-errors
