package main

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/halluprobe/internal/analysis"
	"github.com/danielpatrickdp/halluprobe/internal/store"
)

type inspectFlags struct {
	last      int
	jsonOut   bool
	decisions bool
}

func newInspectCmd(a *app) *cobra.Command {
	var f inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "List runs in the ledger or show one run's summary",
		Long: `Inspect reads the SQLite run ledger given by --db. Without arguments it lists
the most recent runs; with a run id it prints the run's metadata, its
per-condition summary and the records rejected while scoring it.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			if st == nil {
				return usageErrorf("inspect needs a ledger (--db)")
			}
			defer st.Close()

			if len(args) == 1 {
				return a.inspectRun(st, args[0], f)
			}
			return a.listRuns(st, f)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&f.last, "last", 20, "Show the N most recent runs")
	fs.BoolVar(&f.jsonOut, "json", false, "Output JSON instead of a table")
	fs.BoolVar(&f.decisions, "decisions", false, "Show every logged decision, not only rejections")
	return cmd
}

// #region list-mode

type runRow struct {
	RunID       string     `json:"run_id"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
	Conditions  []string   `json:"conditions,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Generations int        `json:"generations"`
	Scored      int        `json:"scored"`
}

func toRunRow(r store.RunRecord) runRow {
	return runRow{
		RunID:       r.RunID,
		Provider:    r.Provider,
		Model:       r.Model,
		Conditions:  r.Conditions,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Generations: r.Generations,
		Scored:      r.Scored,
	}
}

func (a *app) listRuns(st *store.Store, f inspectFlags) error {
	runs, err := st.ListRuns(f.last)
	if err != nil {
		return err
	}
	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = toRunRow(r)
	}
	if f.jsonOut {
		return a.printJSON(rows)
	}
	if len(rows) == 0 {
		a.printf("no runs recorded\n")
		return nil
	}

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"Run", "Provider", "Model", "Status", "Started", "Gens", "Scored"})
	for _, r := range rows {
		w.AppendRow(table.Row{
			r.RunID, r.Provider, r.Model, r.Status,
			r.StartedAt.Format("2006-01-02T15:04:05Z"), r.Generations, r.Scored,
		})
	}
	a.printf("%s\n", w.Render())
	return nil
}

// #endregion list-mode

// #region detail-mode

type runDetail struct {
	Run       runRow                `json:"run"`
	Summary   []analysis.Summary    `json:"summary"`
	Decisions []store.DecisionEntry `json:"decisions,omitempty"`
}

func (a *app) inspectRun(st *store.Store, runID string, f inspectFlags) error {
	rec, err := st.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return usageErrorf("%v", err)
		}
		return err
	}
	scored, err := st.LoadScored(runID)
	if err != nil {
		return err
	}
	all, err := st.ListDecisions(runID)
	if err != nil {
		return err
	}
	decisions := all
	if !f.decisions {
		decisions = nil
		for _, d := range all {
			if d.Decision == store.DecisionRejected {
				decisions = append(decisions, d)
			}
		}
	}

	detail := runDetail{Run: toRunRow(rec), Summary: analysis.Summarize(scored), Decisions: decisions}
	if f.jsonOut {
		return a.printJSON(detail)
	}

	a.printf("Run:         %s\n", rec.RunID)
	a.printf("Provider:    %s\n", orDash(rec.Provider))
	a.printf("Model:       %s\n", orDash(rec.Model))
	a.printf("Conditions:  %s\n", orDash(strings.Join(rec.Conditions, ", ")))
	a.printf("Questions:   %s\n", orDash(rec.QuestionsPath))
	a.printf("Status:      %s\n", rec.Status)
	a.printf("Started:     %s\n", rec.StartedAt.Format(time.RFC3339))
	if rec.FinishedAt != nil {
		a.printf("Finished:    %s\n", rec.FinishedAt.Format(time.RFC3339))
	}
	a.printf("Generations: %d\n", rec.Generations)
	a.printf("Scored:      %d\n\n", rec.Scored)

	if len(detail.Summary) > 0 {
		a.printf("%s\n", analysis.RenderTable(detail.Summary, analysis.StyleConsole))
	}
	if len(decisions) > 0 {
		w := table.NewWriter()
		w.SetStyle(table.StyleLight)
		w.AppendHeader(table.Row{"Question", "Condition", "Decision", "Label", "Reason"})
		for _, d := range decisions {
			w.AppendRow(table.Row{d.QuestionID, d.Condition, string(d.Decision), d.Label, d.Reason})
		}
		a.printf("%s\n", w.Render())
	}
	return nil
}

// #endregion detail-mode

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
