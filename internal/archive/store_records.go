package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const recordColumns = "id, partner_id, external_id, name, school_id, position, photo_url, entity_id, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*PersonRecord, error) {
	var (
		rec        PersonRecord
		position   sql.NullString
		photoURL   sql.NullString
		entityID   sql.NullInt64
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.PartnerID,
		&rec.ExternalID,
		&rec.Name,
		&rec.SchoolID,
		&position,
		&photoURL,
		&entityID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Position = position.String
	rec.PhotoURL = photoURL.String
	rec.EntityID = entityID.Int64
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

// UpsertRecord inserts or refreshes a person record, preserving any existing
// entity link. entityID of zero leaves the record unlinked.
func (t *Tx) UpsertRecord(ctx context.Context, rec *PersonRecord) (*PersonRecord, error) {
	if rec == nil {
		return nil, errors.New("record is nil")
	}
	now := timestamp()
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO person_records (partner_id, external_id, name, school_id, position, photo_url, entity_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (partner_id, external_id) DO UPDATE SET
             name = excluded.name,
             school_id = excluded.school_id,
             position = COALESCE(excluded.position, person_records.position),
             photo_url = COALESCE(excluded.photo_url, person_records.photo_url),
             entity_id = COALESCE(excluded.entity_id, person_records.entity_id),
             updated_at = excluded.updated_at`,
		rec.PartnerID,
		rec.ExternalID,
		rec.Name,
		rec.SchoolID,
		nullableString(rec.Position),
		nullableString(rec.PhotoURL),
		nullableInt64(rec.EntityID),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert record: %w", err)
	}
	return t.recordByExternalID(ctx, rec.PartnerID, rec.ExternalID)
}

func (t *Tx) recordByExternalID(ctx context.Context, partnerID int64, externalID string) (*PersonRecord, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM person_records WHERE partner_id = ? AND external_id = ?`,
		partnerID, externalID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record by external id: %w", err)
	}
	return rec, nil
}

// LinkRecord points a person record at the entity it resolved to.
func (t *Tx) LinkRecord(ctx context.Context, recordID, entityID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE person_records SET entity_id = ?, updated_at = ? WHERE id = ?`,
		entityID, timestamp(), recordID,
	)
	if err != nil {
		return fmt.Errorf("link record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link record: record %d not found", recordID)
	}
	return nil
}

// RecordsByPartner returns the partner's person records ordered by id,
// optionally restricted to records without a resolved entity link.
func (s *Store) RecordsByPartner(ctx context.Context, partnerID int64, onlyUnlinked bool) ([]*PersonRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM person_records WHERE partner_id = ?`
	if onlyUnlinked {
		query += ` AND entity_id IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*PersonRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func recordsByIDs(ctx context.Context, q querier, ids []int64) ([]*PersonRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + recordColumns + ` FROM person_records WHERE id IN (` + makePlaceholders(len(ids)) + `) ORDER BY id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records by ids: %w", err)
	}
	defer rows.Close()

	var records []*PersonRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordsByIDs fetches person records by identifier, ordered by id. Missing
// ids are silently absent from the result.
func (s *Store) RecordsByIDs(ctx context.Context, ids []int64) ([]*PersonRecord, error) {
	return recordsByIDs(ctx, s.q(), ids)
}

// RecordsByIDs fetches person records inside the transaction.
func (t *Tx) RecordsByIDs(ctx context.Context, ids []int64) ([]*PersonRecord, error) {
	return recordsByIDs(ctx, t.q(), ids)
}

// RecordsByEntity returns the person records linked to an entity.
func (s *Store) RecordsByEntity(ctx context.Context, entityID int64) ([]*PersonRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM person_records WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("records by entity: %w", err)
	}
	defer rows.Close()

	var records []*PersonRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
