package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/breedid/internal/breedclient"
)

func newSmokeCommand(ctx *commandContext) *cobra.Command {
	var cfg breedclient.SmokeConfig

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run repeated identifications and verify every result set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := ctx.client()
			defer c.Close()

			stats, err := c.Smoke(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Runs: %d  passed: %d  failed: %d  duration: %s\n",
				stats.Runs, stats.Passed, stats.Failed, stats.Duration.Round(1e6))
			for _, id := range stats.TopBreeds() {
				fmt.Fprintf(out, "  %-20s %d\n", id, stats.BreedHits[id])
			}
			return err
		},
	}
	cmd.Flags().IntVar(&cfg.Runs, "runs", breedclient.DefaultSmokeRuns, "Number of identification round trips")
	cmd.Flags().IntVar(&cfg.Workers, "workers", breedclient.DefaultSmokeWorkers, "Concurrent sessions")
	cmd.Flags().IntVar(&cfg.ResultCount, "results", 0, "Expected predictions per run (0 uses the default)")
	return cmd
}
