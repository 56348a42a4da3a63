package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/halluprobe/internal/config"
	"github.com/danielpatrickdp/halluprobe/internal/logging"
	"github.com/danielpatrickdp/halluprobe/internal/score"
	"github.com/danielpatrickdp/halluprobe/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

// #region exit-codes

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries a process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func failuref(format string, args ...any) error {
	return &exitError{code: exitFailure, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by the command tree to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &exitError{code: exitUsage, err: err}
		}
		return nil
	}
}

// #endregion exit-codes

// #region app

// app holds what every subcommand shares: flags, config and logger. It is
// built fresh for each command tree so tests can run commands side by side.
type app struct {
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger

	configPath string
	verbose    bool
	dbPath     string
}

// openStore opens the run ledger when --db (or paths.db) is set. It returns
// nil without error otherwise.
func (a *app) openStore() (*store.Store, error) {
	path := a.dbPath
	if path == "" {
		path = a.cfg.Paths.DB
	}
	if path == "" {
		return nil, nil
	}
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return st, nil
}

// classifier builds the scorer from the scoring config.
func (a *app) classifier() (*score.Classifier, error) {
	lex, err := score.LoadLexicon(a.cfg.Scoring.LexiconPath)
	if err != nil {
		return nil, err
	}
	lex.EmptyIsAbstention = lex.EmptyIsAbstention || a.cfg.Scoring.EmptyIsAbstention
	return score.NewClassifier(score.Config{
		MatchThreshold: a.cfg.Scoring.MatchThreshold,
		Lexicon:        lex,
	})
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// #endregion app

// #region root

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "halluprobe",
		Short: "Measure how often a language model hallucinates, abstains or answers correctly",
		Long: `halluprobe sends a labeled question set to a model under several prompting
conditions, labels every answer as correct, abstained or hallucinated, and
reports per-condition rates.

Stages:
  halluprobe generate   questions -> raw generations (JSONL)
  halluprobe score      generations -> scored records (CSV)
  halluprobe analyze    scored records -> summary CSV, table, charts
  halluprobe run        all three in sequence`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return usageErrorf("%v", err)
			}
			a.cfg = cfg
			if a.logger == nil {
				logger, err := logging.New(a.verbose)
				if err != nil {
					return err
				}
				a.logger = logger
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	pf.StringVar(&a.dbPath, "db", "", "SQLite run ledger (default: paths.db, disabled when empty)")

	root.AddCommand(
		newGenerateCmd(a),
		newScoreCmd(a),
		newAnalyzeCmd(a),
		newRunCmd(a),
		newReplayCmd(a),
		newInspectCmd(a),
		newExportFixtureCmd(a),
	)
	return root
}

// #endregion root
