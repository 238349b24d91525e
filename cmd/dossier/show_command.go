package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dossier/internal/archive"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withHistory bool

	cmd := &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show an entity with its aliases, photos, and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseEntityID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entity, err := store.ResolveEntity(cmd.Context(), entityID)
			if err != nil {
				return err
			}
			if entity == nil {
				return fmt.Errorf("entity %d not found", entityID)
			}

			aliases, err := store.AliasesByEntity(cmd.Context(), entity.ID)
			if err != nil {
				return err
			}
			records, err := store.RecordsByEntity(cmd.Context(), entity.ID)
			if err != nil {
				return err
			}
			photos, err := store.PhotoVersionsByEntity(cmd.Context(), entity.ID)
			if err != nil {
				return err
			}
			var history []*archive.ChangeEntry
			if withHistory || ctx.jsonOutput() {
				history, err = store.ChangeLog(cmd.Context(), entity.ID)
				if err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"entity":  entity,
					"aliases": aliases,
					"records": records,
					"photos":  photos,
					"history": history,
				})
			}

			out := cmd.OutOrStdout()
			if entity.ID != entityID {
				fmt.Fprintf(out, "Entity %d was merged; showing survivor %d.\n\n", entityID, entity.ID)
			}
			name := entity.CanonicalName
			if entity.TitlePrefix != "" {
				name = entity.TitlePrefix + ". " + name
			}
			fmt.Fprintf(out, "Entity %d: %s\n", entity.ID, name)
			fmt.Fprintf(out, "  school: %d\n", entity.SchoolID)
			fmt.Fprintf(out, "  position: %s\n", orDash(entity.Position))
			fmt.Fprintf(out, "  primary external id: %s\n", entity.PrimaryExternalID)
			fmt.Fprintf(out, "  active: %s\n", yesNo(entity.IsActive))
			fmt.Fprintf(out, "  linked records: %d\n", len(records))

			if len(aliases) > 0 {
				fmt.Fprintln(out, "\nAliases:")
				for _, alias := range aliases {
					fmt.Fprintf(out, "  %s\n", alias.AliasName)
				}
			}

			if len(photos) > 0 {
				rows := make([][]string, 0, len(photos))
				for _, photo := range photos {
					rows = append(rows, []string{
						strconv.FormatInt(photo.ID, 10),
						strconv.Itoa(photo.Year),
						yesNo(photo.IsActive),
					})
				}
				fmt.Fprintln(out, "\nPhotos:")
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Year", "Active"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft},
				))
			}

			if withHistory && len(history) > 0 {
				rows := make([][]string, 0, len(history))
				for _, entry := range history {
					rows = append(rows, []string{
						formatTime(entry.CreatedAt),
						string(entry.Type),
						truncate(orDash(entry.OldValue), 30),
						truncate(orDash(entry.NewValue), 30),
					})
				}
				fmt.Fprintln(out, "\nHistory:")
				fmt.Fprintln(out, renderTable(
					[]string{"When", "Change", "Old", "New"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withHistory, "history", false, "Include the entity's change log")
	return cmd
}
