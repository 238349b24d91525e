package archive

import (
	"context"
	"fmt"
)

func (t *Tx) appendChange(ctx context.Context, entityID int64, changeType ChangeType, oldValue, newValue, metadata string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO change_log (entity_id, change_type, old_value, new_value, metadata, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entityID,
		string(changeType),
		nullableString(oldValue),
		nullableString(newValue),
		nullableString(metadata),
		timestamp(),
	)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// ChangeLog returns an entity's audit trail in insertion order. Entries are
// never mutated or deleted.
func (s *Store) ChangeLog(ctx context.Context, entityID int64) ([]*ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, change_type, old_value, new_value, metadata, created_at
         FROM change_log WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("change log: %w", err)
	}
	defer rows.Close()

	var entries []*ChangeEntry
	for rows.Next() {
		entry, err := scanChangeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanChangeEntry(scanner interface{ Scan(dest ...any) error }) (*ChangeEntry, error) {
	var (
		entry      ChangeEntry
		changeType string
		oldValue   *string
		newValue   *string
		metadata   *string
		createdRaw string
	)
	if err := scanner.Scan(&entry.ID, &entry.EntityID, &changeType, &oldValue, &newValue, &metadata, &createdRaw); err != nil {
		return nil, err
	}
	entry.Type = ChangeType(changeType)
	if oldValue != nil {
		entry.OldValue = *oldValue
	}
	if newValue != nil {
		entry.NewValue = *newValue
	}
	if metadata != nil {
		entry.Metadata = *metadata
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return &entry, nil
}
