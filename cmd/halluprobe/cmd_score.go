package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/logging"
	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// #region flags

type scoreFlags struct {
	questions         string
	generations       string
	scored            string
	threshold         float64
	lexicon           string
	emptyIsAbstention bool
	withInputs        bool
}

// register adds the scoring flags. withInputs adds --questions and
// --generations, which run shares with generate.
func (f *scoreFlags) register(cmd *cobra.Command, withInputs bool) {
	f.withInputs = withInputs
	fs := cmd.Flags()
	if withInputs {
		fs.StringVar(&f.questions, "questions", "", "Questions JSONL (default: paths.questions)")
		fs.StringVar(&f.generations, "generations", "", "Generations JSONL to score (default: paths.generations)")
	}
	fs.StringVar(&f.scored, "scored", "", "Scored CSV to write (default: paths.scored)")
	fs.Float64Var(&f.threshold, "threshold", 0, "Fuzzy match threshold in (0, 1]; 1 means exact (default: scoring.match_threshold)")
	fs.StringVar(&f.lexicon, "lexicon", "", "Abstention lexicon YAML (default: built-in phrases)")
	fs.BoolVar(&f.emptyIsAbstention, "empty-is-abstention", false, "Label empty outputs as abstained instead of hallucinated")
}

func (f *scoreFlags) apply(cmd *cobra.Command, a *app) error {
	fs := cmd.Flags()
	if f.withInputs && fs.Changed("questions") {
		a.cfg.Paths.Questions = f.questions
	}
	if f.withInputs && fs.Changed("generations") {
		a.cfg.Paths.Generations = f.generations
	}
	if fs.Changed("scored") {
		a.cfg.Paths.Scored = f.scored
	}
	if fs.Changed("threshold") {
		a.cfg.Scoring.MatchThreshold = f.threshold
	}
	if fs.Changed("lexicon") {
		a.cfg.Scoring.LexiconPath = f.lexicon
	}
	if fs.Changed("empty-is-abstention") {
		a.cfg.Scoring.EmptyIsAbstention = f.emptyIsAbstention
	}
	if err := a.cfg.Validate(); err != nil {
		return usageErrorf("%v", err)
	}
	return nil
}

// #endregion flags

func newScoreCmd(a *app) *cobra.Command {
	var f scoreFlags
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Label every generation as correct, abstained or hallucinated",
		Long: `Score classifies each generation against its question and writes a CSV with
columns question_id, category, condition, label, confidence, reason.

Records that cannot be scored (malformed lines, unknown question ids, factual
questions without a gold answer) are logged and skipped.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, a); err != nil {
				return err
			}
			gens, issues, err := records.ReadGenerationsFile(a.cfg.Paths.Generations)
			if err != nil {
				return err
			}
			logging.RecordErrors(a.logger, "read", issues)
			scored, err := a.score(gens)
			if err != nil {
				return err
			}
			a.printf("Wrote %d scored records to %s\n", len(scored), a.cfg.Paths.Scored)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

// #region stage

// score labels gens against the configured questions file and writes the
// scored CSV. Data errors are logged, recorded in the ledger and skipped.
func (a *app) score(gens []records.Generation) ([]records.Scored, error) {
	questions, qIssues, err := dataset.LoadQuestions(a.cfg.Paths.Questions)
	if err != nil {
		return nil, err
	}
	logging.RecordErrors(a.logger, "load", qIssues)

	classifier, err := a.classifier()
	if err != nil {
		return nil, usageErrorf("scoring: %v", err)
	}
	scored, issues := classifier.ScoreAll(questions, gens)
	skipped := logging.RecordErrors(a.logger, "score", issues)

	if err := records.WriteScoredFile(a.cfg.Paths.Scored, scored); err != nil {
		return nil, err
	}
	a.logger.Info("scored records written",
		zap.String("path", a.cfg.Paths.Scored),
		zap.Int("records", len(scored)),
		zap.Int("skipped", skipped),
	)

	if err := a.recordScores(gens, scored, issues); err != nil {
		return nil, err
	}
	return scored, nil
}

// recordScores saves generations and scored rows to the ledger, grouped by the
// run id the generations carry. Generations without a run id are not recorded.
func (a *app) recordScores(gens []records.Generation, scored []records.Scored, issues []*dataset.RecordError) error {
	st, err := a.openStore()
	if err != nil || st == nil {
		return err
	}
	defer st.Close()

	type runInfo struct{ provider, model string }
	runs := make(map[string]runInfo)
	gensByRun := make(map[string][]records.Generation)
	var order []string
	for _, g := range gens {
		if g.RunID == "" {
			continue
		}
		if _, ok := runs[g.RunID]; !ok {
			runs[g.RunID] = runInfo{g.Provider, g.Model}
			order = append(order, g.RunID)
		}
		gensByRun[g.RunID] = append(gensByRun[g.RunID], g)
	}
	if len(order) == 0 {
		a.logger.Info("generations carry no run id; ledger not updated")
		return nil
	}

	byRun := make(map[string][]records.Scored, len(order))
	for _, s := range scored {
		byRun[s.RunID] = append(byRun[s.RunID], s)
	}
	// issues are not tied to a run; they are logged against the first one
	for i, runID := range order {
		info := runs[runID]
		if err := st.EnsureRun(runID, info.provider, info.model); err != nil {
			return err
		}
		if err := st.SaveGenerations(runID, gensByRun[runID]); err != nil {
			return fmt.Errorf("record run %s: %w", runID, err)
		}
		if err := st.SaveScored(runID, byRun[runID]); err != nil {
			return fmt.Errorf("record run %s: %w", runID, err)
		}
		if i == 0 {
			if err := st.LogRejections(runID, issues); err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion stage
