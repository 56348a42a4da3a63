package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/logging"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/replay"
	"github.com/danielpatrickdp/halluprobe/internal/score"
	"github.com/danielpatrickdp/halluprobe/internal/store"
)

type exportFlags struct {
	out         string
	runID       string
	questions   string
	generations string
	scored      string
	description string
}

func newExportFixtureCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Pin a scored run as a replay fixture",
		Long: `Export-fixture joins scored records with the generations and questions they
came from and writes a replay fixture that pins every current label. Records
come from the ledger (--run) or from the generations and scored files.

The fixture carries the scoring settings in effect, so replaying it later
detects any change in labeling.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.out == "" {
				return usageErrorf("--out is required")
			}
			fs := cmd.Flags()
			if fs.Changed("questions") {
				a.cfg.Paths.Questions = f.questions
			}
			if fs.Changed("generations") {
				a.cfg.Paths.Generations = f.generations
			}
			if fs.Changed("scored") {
				a.cfg.Paths.Scored = f.scored
			}

			questions, issues, err := dataset.LoadQuestions(a.cfg.Paths.Questions)
			if err != nil {
				return err
			}
			logging.RecordErrors(a.logger, "load", issues)

			gens, scored, err := a.exportInputs(f.runID)
			if err != nil {
				return err
			}

			desc := f.description
			if desc == "" {
				desc = "labels pinned from " + sourceName(f.runID, a.cfg.Paths.Scored)
			}
			fixture := replay.FromScored(desc, questions, gens, scored)
			fixture.Config = replay.FixtureConfig{
				MatchThreshold:    a.cfg.Scoring.MatchThreshold,
				EmptyIsAbstention: a.cfg.Scoring.EmptyIsAbstention,
			}
			if a.cfg.Scoring.LexiconPath != "" {
				lex, err := score.LoadLexicon(a.cfg.Scoring.LexiconPath)
				if err != nil {
					return usageErrorf("%v", err)
				}
				fixture.Config.ExtraPhrases = lex.Phrases()
				fixture.Config.ReplacePhrases = true
				fixture.Config.EmptyIsAbstention = fixture.Config.EmptyIsAbstention || lex.EmptyIsAbstention
			}
			if len(fixture.Cases) == 0 {
				return fmt.Errorf("no scored record matched a generation and question")
			}
			if err := replay.SaveFixture(f.out, fixture); err != nil {
				return err
			}
			a.printf("Wrote %d cases to %s\n", len(fixture.Cases), f.out)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.out, "out", "o", "", "Fixture JSON to write (required)")
	fs.StringVar(&f.runID, "run", "", "Export a run from the ledger (--db)")
	fs.StringVar(&f.questions, "questions", "", "Questions JSONL (default: paths.questions)")
	fs.StringVar(&f.generations, "generations", "", "Generations JSONL (default: paths.generations)")
	fs.StringVar(&f.scored, "scored", "", "Scored CSV (default: paths.scored)")
	fs.StringVar(&f.description, "description", "", "Fixture description")
	return cmd
}

// exportInputs loads generations and scored records from the ledger when
// runID is set and from files otherwise.
func (a *app) exportInputs(runID string) ([]records.Generation, []records.Scored, error) {
	if runID == "" {
		gens, gIssues, err := records.ReadGenerationsFile(a.cfg.Paths.Generations)
		if err != nil {
			return nil, nil, err
		}
		logging.RecordErrors(a.logger, "read", gIssues)
		scored, err := a.loadScored("")
		if err != nil {
			return nil, nil, err
		}
		return gens, scored, nil
	}

	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, usageErrorf("--run needs a ledger (--db)")
	}
	defer st.Close()
	if _, err := st.GetRun(runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, nil, usageErrorf("%v", err)
		}
		return nil, nil, err
	}
	gens, err := st.LoadGenerations(runID)
	if err != nil {
		return nil, nil, err
	}
	scored, err := st.LoadScored(runID)
	if err != nil {
		return nil, nil, err
	}
	return gens, scored, nil
}

func sourceName(runID, scoredPath string) string {
	if runID != "" {
		return "run " + runID
	}
	return scoredPath
}
