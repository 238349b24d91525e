package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dossier/internal/ingest"
)

// rawRecordJSON mirrors the export shape of partner record dumps. Identifiers
// arrive as numbers or strings depending on the source, so both are accepted.
type rawRecordJSON struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	SchoolRef  int64       `json:"schoolRef"`
	ProjectRef string      `json:"projectRef"`
	Position   string      `json:"position"`
	PhotoURL   string      `json:"photoUrl"`
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <records.json>",
		Short: "Import a raw record dump, creating one entity per distinct person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partnerID, err := ctx.partnerID()
			if err != nil {
				return err
			}
			records, err := loadRawRecords(args[0])
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

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			normalizer, err := ctx.normalizer()
			if err != nil {
				return err
			}

			importer := ingest.New(store, normalizer, logger)
			result, err := importer.Run(cmd.Context(), partnerID, records)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Imported %d records: %d entities created, %d skipped, %d external ids merged\n",
				len(records), result.Created, result.Skipped, result.MergedExternalIDs)
			return nil
		},
	}
}

func loadRawRecords(path string) ([]ingest.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}
	var raw []rawRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}

	records := make([]ingest.RawRecord, 0, len(raw))
	for _, entry := range raw {
		records = append(records, ingest.RawRecord{
			ExternalID: strings.TrimSpace(entry.ID.String()),
			Name:       entry.Name,
			SchoolID:   entry.SchoolRef,
			ProjectRef: entry.ProjectRef,
			Position:   entry.Position,
			PhotoURL:   entry.PhotoURL,
		})
	}
	return records, nil
}
