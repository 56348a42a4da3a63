package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/generate"
	"github.com/danielpatrickdp/halluprobe/internal/logging"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/provider"
	"github.com/danielpatrickdp/halluprobe/internal/records"
	"github.com/danielpatrickdp/halluprobe/internal/store"
)

// #region flags

type generateFlags struct {
	questions   string
	out         string
	provider    string
	model       string
	conditions  []string
	concurrency int
	rate        float64
	runID       string
}

func (f *generateFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.questions, "questions", "", "Questions JSONL (default: paths.questions)")
	fs.StringVar(&f.out, "generations", "", "Generations JSONL to write (default: paths.generations)")
	fs.StringVar(&f.provider, "provider", "", "Backend: openai, anthropic, gemini or codec (default: provider)")
	fs.StringVar(&f.model, "model", "", "Model name for the selected backend")
	fs.StringSliceVar(&f.conditions, "conditions", nil, "Prompting conditions, comma separated (default: all)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Requests in flight (default: generation.concurrency)")
	fs.Float64Var(&f.rate, "rate", 0, "Requests per second, 0 for unlimited (default: generation.rate_per_second)")
	fs.StringVar(&f.runID, "run-id", "", "Run identifier (default: random UUID)")
}

// apply copies explicitly set flags over the loaded config.
func (f *generateFlags) apply(cmd *cobra.Command, a *app) error {
	fs := cmd.Flags()
	if fs.Changed("questions") {
		a.cfg.Paths.Questions = f.questions
	}
	if fs.Changed("generations") {
		a.cfg.Paths.Generations = f.out
	}
	if fs.Changed("provider") {
		a.cfg.Provider = strings.ToLower(strings.TrimSpace(f.provider))
	}
	provider.SetModel(a.cfg, f.model)
	if fs.Changed("conditions") {
		a.cfg.Generation.Conditions = f.conditions
	}
	if fs.Changed("concurrency") {
		a.cfg.Generation.Concurrency = f.concurrency
	}
	if fs.Changed("rate") {
		a.cfg.Generation.RatePerSecond = f.rate
	}
	if err := a.cfg.Validate(); err != nil {
		return usageErrorf("%v", err)
	}
	return nil
}

// #endregion flags

func newGenerateCmd(a *app) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Send every question under every condition to the model",
		Long: `Generate renders each question under each prompting condition, sends it to
the configured backend and writes the verbatim outputs as JSONL.

Any endpoint error aborts the run; nothing is written in that case.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd, a); err != nil {
				return err
			}
			gens, err := a.generate(cmd.Context(), f.runID)
			if err != nil {
				return err
			}
			a.printf("Wrote %d generations to %s\n", len(gens), a.cfg.Paths.Generations)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// #region stage

// generate runs the generation stage with the current config and writes the
// generations file.
func (a *app) generate(ctx context.Context, runID string) ([]records.Generation, error) {
	questions, issues, err := dataset.LoadQuestions(a.cfg.Paths.Questions)
	if err != nil {
		return nil, err
	}
	logging.RecordErrors(a.logger, "load", issues)
	if len(questions) == 0 {
		return nil, fmt.Errorf("no usable questions in %s", a.cfg.Paths.Questions)
	}

	client, err := provider.New(ctx, a.cfg)
	if err != nil {
		return nil, usageErrorf("provider: %v", err)
	}
	defer client.Close()

	if runID == "" {
		runID = generate.NewRunID()
	}
	conds := a.cfg.Conditions()

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if st != nil {
		defer st.Close()
		if err := st.BeginRun(store.RunRecord{
			RunID:         runID,
			Provider:      client.Name(),
			Model:         client.Model(),
			Conditions:    conditionNames(conds),
			QuestionsPath: a.cfg.Paths.Questions,
		}); err != nil {
			return nil, err
		}
		if err := st.LogRejections(runID, issues); err != nil {
			a.logger.Warn("log rejected questions", zap.Error(err))
		}
	}

	gen := generate.NewGenerator(client, generate.Config{
		Concurrency:   a.cfg.Generation.Concurrency,
		RatePerSecond: a.cfg.Generation.RatePerSecond,
		Timeout:       a.cfg.Generation.Timeout,
	}, a.logger)

	gens, err := gen.Run(ctx, runID, questions, conds)
	if err != nil {
		if st != nil {
			if ferr := st.FinishRun(runID, store.RunFailed); ferr != nil {
				a.logger.Warn("mark run failed", zap.Error(ferr))
			}
		}
		return nil, fmt.Errorf("generate: %w", err)
	}

	if err := records.WriteGenerationsFile(a.cfg.Paths.Generations, gens); err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.SaveGenerations(runID, gens); err != nil {
			return nil, err
		}
		if err := st.FinishRun(runID, store.RunCompleted); err != nil {
			return nil, err
		}
	}
	a.logger.Info("generations written",
		zap.String("run_id", runID),
		zap.String("path", a.cfg.Paths.Generations),
		zap.Int("records", len(gens)),
	)
	return gens, nil
}

func conditionNames(conds []prompt.Condition) []string {
	out := make([]string, len(conds))
	for i, c := range conds {
		out[i] = string(c)
	}
	return out
}

// #endregion stage
