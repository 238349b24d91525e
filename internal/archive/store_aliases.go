package archive

import (
	"context"
	"fmt"
)

// AddAlias records an alternate spelling for an entity. Adding the canonical
// spelling again or a duplicate alias is a no-op; returns whether a row was
// inserted.
func (t *Tx) AddAlias(ctx context.Context, entityID int64, aliasName, aliasKey string) (bool, error) {
	entity, err := t.GetEntity(ctx, entityID)
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, fmt.Errorf("add alias: entity %d not found", entityID)
	}
	if aliasKey == entity.NameKey {
		return false, nil
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_aliases (entity_id, alias_name, alias_key, created_at)
         VALUES (?, ?, ?, ?)`,
		entityID, aliasName, aliasKey, timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("add alias: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AliasesByEntity returns an entity's aliases ordered by creation.
func (s *Store) AliasesByEntity(ctx context.Context, entityID int64) ([]*Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, alias_name, alias_key, created_at
         FROM entity_aliases WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*Alias
	for rows.Next() {
		var alias Alias
		var createdRaw string
		if err := rows.Scan(&alias.ID, &alias.EntityID, &alias.AliasName, &alias.AliasKey, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			alias.CreatedAt = created
		}
		aliases = append(aliases, &alias)
	}
	return aliases, rows.Err()
}
