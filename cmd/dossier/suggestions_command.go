package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dossier/internal/archive"
	"dossier/internal/review"
)

func newSuggestionsCommand(ctx *commandContext) *cobra.Command {
	suggestionsCmd := &cobra.Command{
		Use:     "suggestions",
		Aliases: []string{"sug"},
		Short:   "Review medium confidence match suggestions",
	}

	suggestionsCmd.AddCommand(newSuggestionsListCommand(ctx))
	suggestionsCmd.AddCommand(newSuggestionsConfirmCommand(ctx))
	suggestionsCmd.AddCommand(newSuggestionsDismissCommand(ctx))
	return suggestionsCmd
}

func newSuggestionsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suggestions, pending by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			partnerID, err := ctx.partnerID()
			if err != nil {
				return err
			}
			status, err := parseSuggestionStatus(statusFlag)
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			suggestions, err := store.Suggestions(cmd.Context(), partnerID, status)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, suggestions)
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
				return nil
			}
			rows := make([][]string, 0, len(suggestions))
			for _, suggestion := range suggestions {
				rows = append(rows, []string{
					suggestion.ID,
					string(suggestion.Status),
					formatMemberIDs(suggestion.MemberIDs),
					truncate(orDash(suggestion.Reason), 50),
					formatTime(suggestion.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Record IDs", "Reason", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "pending", "Filter by status: pending, confirmed, dismissed, or all")
	return cmd
}

func newSuggestionsConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <suggestion-id>",
		Short: "Apply a pending suggestion as a confirmed match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			suggestion, err := store.GetSuggestion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if suggestion == nil {
				return fmt.Errorf("suggestion %s not found", args[0])
			}

			// Confirming mutates entities, so it competes with import and
			// execute runs for the suggestion's partner.
			lock, err := ctx.lockPartner(suggestion.PartnerID)
			if err != nil {
				return err
			}
			defer lock.Release()

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			normalizer, err := ctx.normalizer()
			if err != nil {
				return err
			}

			executor := review.New(store, normalizer, logger)
			result, err := executor.ConfirmSuggestion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Suggestion confirmed: %d entities created, %d merged, %d records linked\n",
				result.EntitiesCreated, result.EntitiesMerged, result.RecordsLinked)
			return nil
		},
	}
}

func newSuggestionsDismissCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <suggestion-id>",
		Short: "Dismiss a pending suggestion without changing the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executor, cleanup, err := newExecutor(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := executor.DismissSuggestion(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Suggestion dismissed.")
			return nil
		},
	}
}

func newExecutor(ctx *commandContext) (*review.Executor, func(), error) {
	store, err := ctx.openStore()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	normalizer, err := ctx.normalizer()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return review.New(store, normalizer, logger), func() { store.Close() }, nil
}

func parseSuggestionStatus(value string) (archive.SuggestionStatus, error) {
	switch value {
	case "pending":
		return archive.SuggestionPending, nil
	case "confirmed":
		return archive.SuggestionConfirmed, nil
	case "dismissed":
		return archive.SuggestionDismissed, nil
	case "all", "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown status %q (use pending, confirmed, dismissed, or all)", value)
	}
}
