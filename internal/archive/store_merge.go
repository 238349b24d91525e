package archive

import (
	"context"
	"encoding/json"
	"fmt"
)

// MergeEntity folds the loser entity into the survivor: external identifiers
// and aliases move over, person records are relinked, and the loser is
// soft-inactivated with a redirect. The loser's canonical name is kept as an
// alias on the survivor so future key matching still reaches it. Exactly one
// merged change entry is appended to the survivor.
//
// Merging an already-inactive loser into its survivor is a no-op.
func (t *Tx) MergeEntity(ctx context.Context, survivorID, loserID int64) error {
	if survivorID == loserID {
		return nil
	}
	survivor, err := t.GetEntity(ctx, survivorID)
	if err != nil {
		return err
	}
	loser, err := t.GetEntity(ctx, loserID)
	if err != nil {
		return err
	}
	if survivor == nil || loser == nil {
		return fmt.Errorf("merge: entity %d or %d not found", survivorID, loserID)
	}
	if !loser.IsActive {
		if loser.MergedInto == survivorID {
			return nil
		}
		return fmt.Errorf("merge: entity %d already merged into %d", loserID, loser.MergedInto)
	}

	now := timestamp()

	// Additional external ids move to the survivor; duplicates within the
	// partner are impossible because (partner_id, external_id) is the key.
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE entity_external_ids SET entity_id = ? WHERE entity_id = ?`,
		survivorID, loserID,
	); err != nil {
		return fmt.Errorf("merge: move external ids: %w", err)
	}
	// The loser's primary id becomes an additional id of the survivor.
	if _, err := t.AddExternalID(ctx, survivorID, loser.PartnerID, loser.PrimaryExternalID); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_aliases (entity_id, alias_name, alias_key, created_at)
         SELECT ?, alias_name, alias_key, ? FROM entity_aliases WHERE entity_id = ?`,
		survivorID, now, loserID,
	); err != nil {
		return fmt.Errorf("merge: copy aliases: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM entity_aliases WHERE entity_id = ?`, loserID,
	); err != nil {
		return fmt.Errorf("merge: drop loser aliases: %w", err)
	}
	if _, err := t.AddAlias(ctx, survivorID, loser.CanonicalName, loser.NameKey); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE person_records SET entity_id = ?, updated_at = ? WHERE entity_id = ?`,
		survivorID, now, loserID,
	); err != nil {
		return fmt.Errorf("merge: relink records: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE archive_entities SET is_active = 0, merged_into = ?, updated_at = ? WHERE id = ?`,
		survivorID, now, loserID,
	); err != nil {
		return fmt.Errorf("merge: inactivate loser: %w", err)
	}

	metadata, err := json.Marshal(map[string]any{
		"absorbed_entity_id":   loserID,
		"absorbed_name":        loser.CanonicalName,
		"absorbed_external_id": loser.PrimaryExternalID,
	})
	if err != nil {
		return fmt.Errorf("merge: encode metadata: %w", err)
	}
	return t.appendChange(ctx, survivorID, ChangeMerged,
		loser.CanonicalName, survivor.CanonicalName, string(metadata))
}
