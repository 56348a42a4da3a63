package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/halluprobe/internal/analysis"
	"github.com/danielpatrickdp/halluprobe/internal/eval"
	"github.com/danielpatrickdp/halluprobe/internal/logging"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/store"
)

// #region flags

type analyzeFlags struct {
	scored     string
	summary    string
	plots      string
	runID      string
	byCategory bool
	markdown   bool
	noCharts   bool
	check      bool
	withInput  bool

	maxHallucinationRate float64
	minAccuracy          float64
	maxCalibrationError  float64
}

// register adds the analysis flags. withInput adds --scored and --run, which
// run gets from the scoring stage instead.
func (f *analyzeFlags) register(cmd *cobra.Command, withInput bool) {
	f.withInput = withInput
	fs := cmd.Flags()
	if withInput {
		fs.StringVar(&f.scored, "scored", "", "Scored CSV to analyze (default: paths.scored)")
		fs.StringVar(&f.runID, "run", "", "Analyze a run from the ledger instead of a CSV")
	}
	fs.StringVar(&f.summary, "summary", "", "Summary CSV to write (default: paths.summary)")
	fs.StringVar(&f.plots, "plots", "", "Directory for bar charts (default: paths.plots)")
	fs.BoolVar(&f.byCategory, "by-category", false, "Add a per-category breakdown")
	fs.BoolVar(&f.markdown, "markdown", false, "Print the table as Markdown")
	fs.BoolVar(&f.noCharts, "no-charts", false, "Skip chart rendering")
	fs.BoolVar(&f.check, "check", false, "Exit 1 when a threshold check fails")
	fs.Float64Var(&f.maxHallucinationRate, "max-hallucination-rate", 0, "Check: highest allowed hallucination rate (default: check.max_hallucination_rate)")
	fs.Float64Var(&f.minAccuracy, "min-accuracy", 0, "Check: lowest allowed accuracy (default: check.min_accuracy)")
	fs.Float64Var(&f.maxCalibrationError, "max-calibration-error", 0, "Check: highest allowed calibration error (default: check.max_calibration_error)")
}

func (f *analyzeFlags) apply(cmd *cobra.Command, a *app) error {
	fs := cmd.Flags()
	if f.withInput && fs.Changed("scored") {
		a.cfg.Paths.Scored = f.scored
	}
	if fs.Changed("summary") {
		a.cfg.Paths.Summary = f.summary
	}
	if fs.Changed("plots") {
		a.cfg.Paths.Plots = f.plots
	}
	if fs.Changed("max-hallucination-rate") {
		a.cfg.Check.MaxHallucinationRate = f.maxHallucinationRate
	}
	if fs.Changed("min-accuracy") {
		a.cfg.Check.MinAccuracy = f.minAccuracy
	}
	if fs.Changed("max-calibration-error") {
		a.cfg.Check.MaxCalibrationError = f.maxCalibrationError
	}
	if err := a.cfg.Validate(); err != nil {
		return usageErrorf("%v", err)
	}
	if f.check && !a.cfg.Check.Enabled() {
		return usageErrorf("--check needs at least one threshold (flag or check.* config)")
	}
	return nil
}

// #endregion flags

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize scored records per condition",
		Long: `Analyze computes per-condition accuracy, hallucination rate, abstention rate
and confidence calibration, writes a summary CSV, prints a table and renders
one bar chart per rate.

With --check the summaries are compared against the configured thresholds and
the command exits 1 when any check fails.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, a); err != nil {
				return err
			}
			scored, err := a.loadScored(f.runID)
			if err != nil {
				return err
			}
			return a.analyze(scored, f)
		},
	}
	f.register(cmd, true)
	return cmd
}

// #region stage

// loadScored reads scored records from the ledger when runID is set and from
// the scored CSV otherwise.
func (a *app) loadScored(runID string) ([]records.Scored, error) {
	if runID == "" {
		scored, issues, err := records.ReadScoredFile(a.cfg.Paths.Scored)
		if err != nil {
			return nil, err
		}
		logging.RecordErrors(a.logger, "read", issues)
		return scored, nil
	}

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, usageErrorf("--run needs a ledger (--db)")
	}
	defer st.Close()
	if _, err := st.GetRun(runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, usageErrorf("%v", err)
		}
		return nil, err
	}
	return st.LoadScored(runID)
}

// analyze writes the summary CSV and charts, prints the table and applies the
// threshold checks when asked.
func (a *app) analyze(scored []records.Scored, f analyzeFlags) error {
	if len(scored) == 0 {
		return fmt.Errorf("no scored records to analyze")
	}

	sums := analysis.Summarize(scored)
	report := sums
	if f.byCategory {
		report = append(append([]analysis.Summary(nil), sums...), analysis.SummarizeByCategory(scored)...)
	}

	if err := writeSummary(a.cfg.Paths.Summary, report); err != nil {
		return err
	}
	style := analysis.StyleConsole
	if f.markdown {
		style = analysis.StyleMarkdown
	}
	a.printf("%s\n", analysis.RenderTable(report, style))
	a.printf("Summary: %s\n", a.cfg.Paths.Summary)

	if !f.noCharts {
		paths, err := analysis.RenderCharts(a.cfg.Paths.Plots, sums)
		if err != nil {
			return err
		}
		a.logger.Info("charts written", zap.Strings("paths", paths))
		a.printf("Charts: %s\n", strings.Join(paths, ", "))
	}

	if !a.cfg.Check.Enabled() {
		return nil
	}
	res := eval.NewEvalHarness(a.cfg.Check).Run(sums)
	for _, m := range res.Metrics {
		status := "PASS"
		if !m.Pass {
			status = "FAIL"
		}
		a.printf("[%s] %-20s %-18s %.3f (limit %.3f)\n", status, m.Condition, m.Name, m.Value, m.Limit)
	}
	if !res.Passed {
		if f.check {
			return failuref("%s", res.Reason)
		}
		a.logger.Warn("threshold checks failed", zap.String("reason", res.Reason))
	}
	return nil
}

func writeSummary(path string, sums []analysis.Summary) error {
	out, err := records.CreateFile(path)
	if err != nil {
		return err
	}
	if err := analysis.WriteSummaryCSV(out, sums); err != nil {
		out.Close()
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return out.Close()
}

// #endregion stage
