package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics and database health for the partner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			partnerID, err := ctx.partnerID()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context(), partnerID)
			if err != nil {
				return err
			}
			health, err := store.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"stats":  stats,
					"health": health,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Partner %d\n", partnerID)
			fmt.Fprintf(out, "  entities: %d active, %d merged away\n", stats.Entities, stats.InactiveMerged)
			fmt.Fprintf(out, "  records: %d total, %d unlinked\n", stats.Records, stats.UnlinkedRecords)
			fmt.Fprintf(out, "  pending suggestions: %d\n", stats.Suggestions)
			fmt.Fprintf(out, "Database: %s (%s)\n", store.Path(), healthLabel(health.IntegrityCheck))
			return nil
		},
	}
}

func healthLabel(ok bool) string {
	if ok {
		return "healthy"
	}
	return "integrity check failed"
}
