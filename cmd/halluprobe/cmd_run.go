package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		gf generateFlags
		sf scoreFlags
		af analyzeFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, score and analyze in one pass",
		Long: `Run executes the three stages in sequence with the same configuration. The
intermediate files are written exactly as the individual stages write them, so
any stage can be re-run on its own afterwards.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, apply := range []func(*cobra.Command, *app) error{gf.apply, sf.apply, af.apply} {
				if err := apply(cmd, a); err != nil {
					return err
				}
			}

			gens, err := a.generate(cmd.Context(), gf.runID)
			if err != nil {
				return err
			}
			a.printf("Wrote %d generations to %s\n", len(gens), a.cfg.Paths.Generations)

			scored, err := a.score(gens)
			if err != nil {
				return err
			}
			a.printf("Wrote %d scored records to %s\n", len(scored), a.cfg.Paths.Scored)

			return a.analyze(scored, af)
		},
	}
	gf.register(cmd)
	sf.register(cmd, false)
	af.register(cmd, false)
	return cmd
}
