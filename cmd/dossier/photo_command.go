package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dossier/internal/photos"
)

func newPhotoCommand(ctx *commandContext) *cobra.Command {
	photoCmd := &cobra.Command{
		Use:   "photo",
		Short: "Manage entity photo versions",
	}

	photoCmd.AddCommand(newPhotoUploadCommand(ctx))
	photoCmd.AddCommand(newPhotoListCommand(ctx))
	return photoCmd
}

func newPhotoUploadCommand(ctx *commandContext) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "upload <entity-id> <image-file>",
		Short: "Store a new photo version for an entity",
		Long: `Store a photo as a new version of the entity's portrait. Superseded
versions are kept. The version's year comes from --year, falling back to
the image's EXIF capture date and then the current year. The newest year
holds the active slot.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseEntityID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := newPhotoService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			version, err := svc.Upload(cmd.Context(), entityID, args[1], year)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, version)
			}
			state := "stored"
			if version.IsActive {
				state = "stored and promoted to active"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Photo version %d (%d) %s\n", version.ID, version.Year, state)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Year the photo was taken (defaults to EXIF capture date)")
	return cmd
}

func newPhotoListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity-id>",
		Short: "List an entity's photo versions, newest year first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseEntityID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := newPhotoService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			versions, err := svc.Versions(cmd.Context(), entityID)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, versions)
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No photo versions.")
				return nil
			}
			rows := make([][]string, 0, len(versions))
			for _, version := range versions {
				rows = append(rows, []string{
					strconv.FormatInt(version.ID, 10),
					strconv.Itoa(version.Year),
					yesNo(version.IsActive),
					version.MediaRef,
					formatTime(version.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Year", "Active", "Media", "Uploaded"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newPhotoService(ctx *commandContext) (*photos.Service, func(), error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := ctx.openStore()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return photos.NewService(store, cfg, logger), func() { store.Close() }, nil
}

func parseEntityID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entity id %q", value)
	}
	return id, nil
}
