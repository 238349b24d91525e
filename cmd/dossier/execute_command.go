package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dossier/internal/match"
	"dossier/internal/review"
)

func newExecuteCommand(ctx *commandContext) *cobra.Command {
	var allRecords bool

	cmd := &cobra.Command{
		Use:   "execute [report.json]",
		Short: "Apply candidate groups: link, merge, or create entities",
		Long: `Apply the candidate groups of an analysis run. Deterministic and high
confidence groups mutate the archive immediately; medium confidence groups
are stored as pending suggestions.

With a report file argument the saved analysis is applied as-is. Without
one a fresh analysis runs first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partnerID, err := ctx.partnerID()
			if err != nil {
				return err
			}

			lock, err := ctx.lockPartner(partnerID)
			if err != nil {
				return err
			}
			defer lock.Release()

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var report *match.Report
			if len(args) == 1 {
				report, err = loadReport(args[0])
				if err != nil {
					return err
				}
				if report.PartnerID != partnerID {
					return fmt.Errorf("report belongs to partner %d, not %d", report.PartnerID, partnerID)
				}
			} else {
				report, err = runAnalysis(cmd, ctx, store, partnerID, !allRecords)
				if err != nil {
					return err
				}
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			normalizer, err := ctx.normalizer()
			if err != nil {
				return err
			}

			executor := review.New(store, normalizer, logger)
			result, err := executor.Execute(cmd.Context(), partnerID, report.Groups())
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Applied %d candidate groups for partner %d\n", len(report.Groups()), partnerID)
			fmt.Fprintf(out, "  entities created: %d\n", result.EntitiesCreated)
			fmt.Fprintf(out, "  entities merged: %d\n", result.EntitiesMerged)
			fmt.Fprintf(out, "  records linked: %d\n", result.RecordsLinked)
			fmt.Fprintf(out, "  suggestions saved: %d\n", result.SuggestionsSaved)
			if result.GroupsFailed > 0 {
				fmt.Fprintf(out, "  groups failed: %d (see log)\n", result.GroupsFailed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allRecords, "all", false, "Analyze every record, including those already linked to an entity")
	return cmd
}
