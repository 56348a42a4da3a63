package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/halluprobe/internal/replay"
)

func newReplayCmd(a *app) *cobra.Command {
	var fixtures []string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-score recorded outputs and compare against pinned labels",
		Long: `Replay loads one or more fixtures of recorded model outputs with their
expected labels, re-scores every case with the fixture's scoring settings and
prints an expected-vs-replayed table. It exits 1 when any case diverges.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(fixtures) == 0 {
				return usageErrorf("at least one --fixture is required")
			}
			var failed []string
			for _, path := range fixtures {
				f, err := replay.LoadFixture(path)
				if err != nil {
					return usageErrorf("%v", err)
				}
				results := replay.Replay(f)
				sum := replay.Summarize(results)
				a.printComparison(path, f, results, sum)
				if !sum.Passed() {
					failed = append(failed, path)
				}
			}
			if len(failed) > 0 {
				return failuref("%d fixture(s) diverged: %v", len(failed), failed)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fixtures, "fixture", nil, "Fixture JSON (repeatable)")
	return cmd
}

// #region output

// printComparison writes one row per case and a summary line.
func (a *app) printComparison(path string, f *replay.Fixture, results []replay.ReplayResult, sum replay.ReplaySummary) {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	title := path
	if f.Description != "" {
		title += ": " + f.Description
	}
	w.SetTitle(title)
	w.AppendHeader(table.Row{"Case", "Expected", "Replayed", "Match", "Reason"})

	for _, r := range results {
		match := "OK"
		replayed := string(r.Replayed)
		reason := r.Reason
		switch {
		case r.Err != nil:
			match = "ERROR"
			replayed = "-"
			reason = r.Err.Error()
		case !r.Match:
			match = "DIFF"
			if r.Replayed == r.Expected {
				reason = fmt.Sprintf("confidence %s, want %s", conf(r.Confidence), conf(r.ExpectedConfidence))
			}
		}
		w.AppendRow(table.Row{r.CaseID, string(r.Expected), replayed, match, reason})
	}

	a.printf("%s\n", w.Render())
	a.printf("Summary: %d total, %d match, %d diverge, %d error (correct %d, abstained %d, hallucinated %d)\n\n",
		sum.TotalCases, sum.Matches, sum.Divergences, sum.Errors, sum.Correct, sum.Abstained, sum.Hallucinated)
}

func conf(v *float64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *v)
}

// #endregion output
