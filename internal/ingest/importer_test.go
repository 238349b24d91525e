package ingest

import (
	"context"
	"testing"

	"dossier/internal/archive"
	"dossier/internal/logging"
	"dossier/internal/normalize"
	"dossier/internal/testsupport"
)

func newImporter(t *testing.T) (*Importer, *archive.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return New(store, normalize.New(), logging.NewNop()), store
}

func TestRunMergesRecordsSharingKey(t *testing.T) {
	importer, store := newImporter(t)
	ctx := context.Background()

	result, err := importer.Run(ctx, 1, []RawRecord{
		{ExternalID: "1", Name: "Dr. Kovács János", SchoolID: 5},
		{ExternalID: "2", Name: "Kovács János", SchoolID: 5},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 1 || result.Skipped != 0 || result.MergedExternalIDs != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	entity := entities[0]
	if entity.CanonicalName != "Kovács János" {
		t.Errorf("canonical name = %q", entity.CanonicalName)
	}
	if entity.TitlePrefix != "Dr" {
		t.Errorf("title prefix = %q", entity.TitlePrefix)
	}
	if entity.PrimaryExternalID != "1" {
		t.Errorf("primary external id = %q", entity.PrimaryExternalID)
	}

	claimed, err := store.ClaimedExternalIDs(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimedExternalIDs: %v", err)
	}
	if claimed["1"] != entity.ID || claimed["2"] != entity.ID {
		t.Errorf("claimed map = %v", claimed)
	}

	records, err := store.RecordsByEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("RecordsByEntity: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 linked records, got %d", len(records))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	importer, store := newImporter(t)
	ctx := context.Background()

	records := []RawRecord{
		{ExternalID: "10", Name: "Szabó Anna", SchoolID: 3},
		{ExternalID: "11", Name: "Nagy Péter", SchoolID: 3},
	}
	if _, err := importer.Run(ctx, 1, records); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	result, err := importer.Run(ctx, 1, records)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Created != 0 || result.Skipped != 2 || result.MergedExternalIDs != 0 {
		t.Fatalf("second run result: %+v", result)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 2 {
		t.Errorf("expected 2 entities after rerun, got %d", len(entities))
	}
}

func TestRunSkipsInvalidRecords(t *testing.T) {
	importer, _ := newImporter(t)

	result, err := importer.Run(context.Background(), 1, []RawRecord{
		{ExternalID: "1", Name: "   ", SchoolID: 5},
		{ExternalID: "2", Name: "Kiss Éva", SchoolID: 0},
		{ExternalID: "", Name: "Kiss Éva", SchoolID: 5},
		{ExternalID: "3", Name: "Kiss Éva", SchoolID: 5},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 1 || result.Skipped != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunFirstPositionWins(t *testing.T) {
	importer, store := newImporter(t)
	ctx := context.Background()

	if _, err := importer.Run(ctx, 1, []RawRecord{
		{ExternalID: "1", Name: "Tóth Gábor", SchoolID: 2},
		{ExternalID: "2", Name: "Tóth Gábor", SchoolID: 2, Position: "igazgató"},
		{ExternalID: "3", Name: "Tóth Gábor", SchoolID: 2, Position: "tanár"},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].Position != "igazgató" {
		t.Errorf("position = %q, want first non-empty", entities[0].Position)
	}
}

func TestRunSkipsGroupWithClaimedPrimary(t *testing.T) {
	importer, store := newImporter(t)
	ctx := context.Background()

	testsupport.CreateEntity(t, store, 1, 5, "Kovács János", "1")

	result, err := importer.Run(ctx, 1, []RawRecord{
		{ExternalID: "1", Name: "Teljesen Más Név", SchoolID: 9},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 0 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunClaimsMergedIDsForLaterGroups(t *testing.T) {
	importer, store := newImporter(t)
	ctx := context.Background()

	// External id 2 is absorbed by the first group, so the second group's
	// primary is already claimed by the time it is reached.
	result, err := importer.Run(ctx, 1, []RawRecord{
		{ExternalID: "1", Name: "Kovács János", SchoolID: 5},
		{ExternalID: "2", Name: "Dr. Kovács János", SchoolID: 5},
		{ExternalID: "2", Name: "Szabó Anna", SchoolID: 5},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Created != 1 || result.Skipped != 1 || result.MergedExternalIDs != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 1 {
		t.Errorf("expected 1 entity, got %d", len(entities))
	}
}

func TestRunRejectsInvalidPartner(t *testing.T) {
	importer, _ := newImporter(t)
	if _, err := importer.Run(context.Background(), 0, nil); err == nil {
		t.Fatal("expected error for partner id 0")
	}
}
