package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const entityColumns = "id, partner_id, school_id, canonical_name, title_prefix, position, primary_external_id, name_key, notes, is_active, merged_into, active_photo_version_id, created_at, updated_at"

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		id           int64
		partnerID    int64
		schoolID     int64
		name         string
		titlePrefix  sql.NullString
		position     sql.NullString
		primaryExtID string
		nameKey      string
		notes        sql.NullString
		isActive     int
		mergedInto   sql.NullInt64
		activePhoto  sql.NullInt64
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&partnerID,
		&schoolID,
		&name,
		&titlePrefix,
		&position,
		&primaryExtID,
		&nameKey,
		&notes,
		&isActive,
		&mergedInto,
		&activePhoto,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entity := &Entity{
		ID:                   id,
		PartnerID:            partnerID,
		SchoolID:             schoolID,
		CanonicalName:        name,
		TitlePrefix:          titlePrefix.String,
		Position:             position.String,
		PrimaryExternalID:    primaryExtID,
		NameKey:              nameKey,
		Notes:                notes.String,
		IsActive:             isActive != 0,
		MergedInto:           mergedInto.Int64,
		ActivePhotoVersionID: activePhoto.Int64,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entity.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entity.UpdatedAt = updated
	}
	return entity, nil
}

func getEntity(ctx context.Context, q querier, id int64) (*Entity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM archive_entities WHERE id = ?`, id)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// GetEntity fetches an entity by identifier, or nil when absent.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	return getEntity(ctx, s.q(), id)
}

// GetEntity fetches an entity inside the transaction.
func (t *Tx) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	return getEntity(ctx, t.q(), id)
}

// ResolveEntity follows merge redirects until it reaches the surviving entity.
func (s *Store) ResolveEntity(ctx context.Context, id int64) (*Entity, error) {
	for {
		entity, err := s.GetEntity(ctx, id)
		if err != nil || entity == nil {
			return entity, err
		}
		if entity.IsActive || entity.MergedInto == 0 {
			return entity, nil
		}
		id = entity.MergedInto
	}
}

// EntitiesByPartner returns the partner's entities ordered by id. Inactive
// (merged-away) entities are included only when withInactive is set.
func (s *Store) EntitiesByPartner(ctx context.Context, partnerID int64, withInactive bool) ([]*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM archive_entities WHERE partner_id = ?`
	if !withInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// ClaimedExternalIDs returns every external identifier already claimed within
// the partner scope, primary and additional alike, mapped to the owning
// entity.
func (s *Store) ClaimedExternalIDs(ctx context.Context, partnerID int64) (map[string]int64, error) {
	claimed := make(map[string]int64)

	rows, err := s.db.QueryContext(ctx,
		`SELECT primary_external_id, id FROM archive_entities WHERE partner_id = ?`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("query primary external ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var externalID string
		var entityID int64
		if err := rows.Scan(&externalID, &entityID); err != nil {
			return nil, err
		}
		claimed[externalID] = entityID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	extra, err := s.db.QueryContext(ctx,
		`SELECT external_id, entity_id FROM entity_external_ids WHERE partner_id = ?`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("query additional external ids: %w", err)
	}
	defer extra.Close()
	for extra.Next() {
		var externalID string
		var entityID int64
		if err := extra.Scan(&externalID, &entityID); err != nil {
			return nil, err
		}
		claimed[externalID] = entityID
	}
	return claimed, extra.Err()
}

// EntityIDByKey finds an active entity whose canonical name or any alias
// matches the normalization key within the partner scope.
func (s *Store) EntityIDByKey(ctx context.Context, partnerID int64, key string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM archive_entities WHERE partner_id = ? AND name_key = ? AND is_active = 1 ORDER BY id LIMIT 1`,
		partnerID, key,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("entity by key: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT a.entity_id FROM entity_aliases a
         JOIN archive_entities e ON e.id = a.entity_id
         WHERE e.partner_id = ? AND a.alias_key = ? AND e.is_active = 1
         ORDER BY a.entity_id LIMIT 1`,
		partnerID, key,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("entity by alias key: %w", err)
}

// NewEntity carries the fields needed to create a canonical entity.
type NewEntity struct {
	PartnerID         int64
	SchoolID          int64
	CanonicalName     string
	TitlePrefix       string
	Position          string
	PrimaryExternalID string
	NameKey           string
	Notes             string
	// PhotoURLs are recorded in the creation change entry's metadata for
	// later photo import.
	PhotoURLs []string
}

// CreateEntity inserts a canonical entity and its creation change entry.
func (t *Tx) CreateEntity(ctx context.Context, ne NewEntity) (*Entity, error) {
	now := timestamp()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO archive_entities (
            partner_id, school_id, canonical_name, title_prefix, position,
            primary_external_id, name_key, notes, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ne.PartnerID,
		ne.SchoolID,
		ne.CanonicalName,
		nullableString(ne.TitlePrefix),
		nullableString(ne.Position),
		ne.PrimaryExternalID,
		ne.NameKey,
		nullableString(ne.Notes),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	metadata := ""
	if len(ne.PhotoURLs) > 0 {
		encoded, err := json.Marshal(map[string]any{"photo_urls": ne.PhotoURLs})
		if err != nil {
			return nil, fmt.Errorf("encode creation metadata: %w", err)
		}
		metadata = string(encoded)
	}
	if err := t.appendChange(ctx, id, ChangeCreated, "", ne.CanonicalName, metadata); err != nil {
		return nil, err
	}
	return t.GetEntity(ctx, id)
}

// AddExternalID records an additional external identifier for an entity.
// Returns false when the identifier is already claimed within the partner.
func (t *Tx) AddExternalID(ctx context.Context, entityID, partnerID int64, externalID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_external_ids (entity_id, partner_id, external_id, created_at)
         VALUES (?, ?, ?, ?)`,
		entityID, partnerID, externalID, timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("add external id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateIdentity rewrites an entity's canonical name, title, or school,
// emitting one change entry per field that actually changed. The new name key
// must be computed by the caller.
func (t *Tx) UpdateIdentity(ctx context.Context, id int64, name, titlePrefix, nameKey string, schoolID int64) error {
	entity, err := t.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("update identity: entity %d not found", id)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE archive_entities
         SET canonical_name = ?, title_prefix = ?, name_key = ?, school_id = ?, updated_at = ?
         WHERE id = ?`,
		name, nullableString(titlePrefix), nameKey, schoolID, timestamp(), id,
	); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}

	if entity.CanonicalName != name {
		if err := t.appendChange(ctx, id, ChangeNameChanged, entity.CanonicalName, name, ""); err != nil {
			return err
		}
	}
	if entity.TitlePrefix != titlePrefix {
		if err := t.appendChange(ctx, id, ChangeTitleChanged, entity.TitlePrefix, titlePrefix, ""); err != nil {
			return err
		}
	}
	if entity.SchoolID != schoolID {
		if err := t.appendChange(ctx, id, ChangeSchoolChanged,
			fmt.Sprintf("%d", entity.SchoolID), fmt.Sprintf("%d", schoolID), ""); err != nil {
			return err
		}
	}
	return nil
}
