package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var unlinkedOnly bool

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the partner's person records",
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

			records, err := store.RecordsByPartner(cmd.Context(), partnerID, unlinkedOnly)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No records.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				entity := "-"
				if rec.Linked() {
					entity = strconv.FormatInt(rec.EntityID, 10)
				}
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.ExternalID,
					rec.Name,
					strconv.FormatInt(rec.SchoolID, 10),
					entity,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "External ID", "Name", "School", "Entity"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unlinkedOnly, "unlinked", false, "Only show records without a resolved entity")
	return cmd
}
