package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dossier/internal/archive"
	"dossier/internal/match"
	"dossier/internal/services/llm"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath string
		allRecords bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Propose candidate groups for the partner's unresolved records",
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

			report, err := runAnalysis(cmd, ctx, store, partnerID, !allRecords)
			if err != nil {
				return err
			}

			if outputPath != "" {
				if err := saveReport(outputPath, report); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the analysis report as JSON for a later execute")
	cmd.Flags().BoolVar(&allRecords, "all", false, "Analyze every record, including those already linked to an entity")
	return cmd
}

func runAnalysis(cmd *cobra.Command, ctx *commandContext, store *archive.Store, partnerID int64, onlyNew bool) (*match.Report, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		return nil, err
	}
	normalizer, err := ctx.normalizer()
	if err != nil {
		return nil, err
	}

	opts := []match.Option{match.WithBatchSize(cfg.Matching.BatchSize)}
	if !ctx.jsonOutput() && stdoutIsTerminal() {
		opts = append(opts, match.WithProgress(func(stage, message string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", stage, message)
		}))
	}

	engine := match.New(store, normalizer, llm.NewClient(cfg.LLM), logger, opts...)
	return engine.Analyze(cmd.Context(), partnerID, onlyNew)
}

func saveReport(path string, report *match.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func loadReport(path string) (*match.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report match.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &report, nil
}

func printReport(cmd *cobra.Command, report *match.Report) {
	out := cmd.OutOrStdout()
	stats := report.Stats
	fmt.Fprintf(out, "Analyzed %d unresolved records for partner %d\n", stats.ScopeSize, report.PartnerID)
	fmt.Fprintf(out, "  deterministic groups: %d (%d matched an existing entity)\n", stats.DeterministicGroups, stats.EntityHits)
	fmt.Fprintf(out, "  ai groups: %d high, %d medium\n", stats.AIHighGroups, stats.AIMediumGroups)
	fmt.Fprintf(out, "  unmatched: %d\n", stats.Unmatched)

	groups := report.Groups()
	if len(groups) == 0 {
		return
	}
	rows := make([][]string, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, []string{
			group.Confidence,
			formatMemberIDs(group.MemberIDs),
			truncate(orDash(group.Reason), 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Confidence", "Record IDs", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
}
