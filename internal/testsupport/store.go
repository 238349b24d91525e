package testsupport

import (
	"context"
	"fmt"
	"testing"

	"dossier/internal/archive"
	"dossier/internal/config"
	"dossier/internal/normalize"
)

// MustOpenStore opens an archive.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *archive.Store {
	t.Helper()

	store, err := archive.Open(cfg)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// CreateEntity inserts a canonical entity for tests, computing its name key
// with a default normalizer.
func CreateEntity(t testing.TB, store *archive.Store, partnerID, schoolID int64, name, externalID string) *archive.Entity {
	t.Helper()

	n := normalize.New()
	title, stripped := n.SplitTitle(name)
	key, ok := n.Key(name, schoolID)
	if !ok {
		t.Fatalf("cannot compute key for %q school %d", name, schoolID)
	}

	var entity *archive.Entity
	err := store.InTx(context.Background(), func(tx *archive.Tx) error {
		var err error
		entity, err = tx.CreateEntity(context.Background(), archive.NewEntity{
			PartnerID:         partnerID,
			SchoolID:          schoolID,
			CanonicalName:     stripped,
			TitlePrefix:       title,
			PrimaryExternalID: externalID,
			NameKey:           key,
		})
		return err
	})
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	return entity
}

// AddRecord inserts a person record for tests. entityID of zero leaves the
// record unlinked.
func AddRecord(t testing.TB, store *archive.Store, partnerID, schoolID, entityID int64, externalID, name string) *archive.PersonRecord {
	t.Helper()

	var rec *archive.PersonRecord
	err := store.InTx(context.Background(), func(tx *archive.Tx) error {
		var err error
		rec, err = tx.UpsertRecord(context.Background(), &archive.PersonRecord{
			PartnerID:  partnerID,
			ExternalID: externalID,
			Name:       name,
			SchoolID:   schoolID,
			EntityID:   entityID,
		})
		return err
	})
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	return rec
}

// RecordIDs extracts the ids of the given records in order.
func RecordIDs(records ...*archive.PersonRecord) []int64 {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// ExternalID formats a numeric external identifier the way sync sources do.
func ExternalID(n int) string { return fmt.Sprintf("ext-%d", n) }
