package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const photoColumns = "id, entity_id, media_ref, year, is_active, created_at"

func scanPhoto(scanner interface{ Scan(dest ...any) error }) (*PhotoVersion, error) {
	var (
		photo      PhotoVersion
		isActive   int
		createdRaw string
	)
	if err := scanner.Scan(&photo.ID, &photo.EntityID, &photo.MediaRef, &photo.Year, &isActive, &createdRaw); err != nil {
		return nil, err
	}
	photo.IsActive = isActive != 0
	if created, err := parseTimeString(createdRaw); err == nil {
		photo.CreatedAt = created
	}
	return &photo, nil
}

// InsertPhotoVersion stores a new inactive photo version and its
// photo_uploaded change entry. Activation is a separate step.
func (t *Tx) InsertPhotoVersion(ctx context.Context, entityID int64, mediaRef string, year int) (*PhotoVersion, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO photo_versions (entity_id, media_ref, year, is_active, created_at)
         VALUES (?, ?, ?, 0, ?)`,
		entityID, mediaRef, year, timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert photo version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := t.appendChange(ctx, entityID, ChangePhotoUploaded, "", mediaRef,
		fmt.Sprintf(`{"year":%d}`, year)); err != nil {
		return nil, err
	}
	return t.photoByID(ctx, id)
}

func (t *Tx) photoByID(ctx context.Context, id int64) (*PhotoVersion, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photo_versions WHERE id = ?`, id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("photo by id: %w", err)
	}
	return photo, nil
}

// ActivePhotoVersion returns the entity's active version, or nil when the
// entity has no photos yet.
func (t *Tx) ActivePhotoVersion(ctx context.Context, entityID int64) (*PhotoVersion, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photo_versions WHERE entity_id = ? AND is_active = 1 LIMIT 1`,
		entityID)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active photo: %w", err)
	}
	return photo, nil
}

// PromotePhotoVersion makes the given version the entity's single active one,
// demoting any prior active version, and records the active_photo_changed
// change entry.
func (t *Tx) PromotePhotoVersion(ctx context.Context, photo *PhotoVersion) error {
	if photo == nil {
		return errors.New("photo is nil")
	}
	previous, err := t.ActivePhotoVersion(ctx, photo.EntityID)
	if err != nil {
		return err
	}
	if previous != nil && previous.ID == photo.ID {
		return nil
	}

	now := timestamp()
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE photo_versions SET is_active = 0 WHERE entity_id = ? AND is_active = 1`,
		photo.EntityID,
	); err != nil {
		return fmt.Errorf("demote photo versions: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE photo_versions SET is_active = 1 WHERE id = ?`, photo.ID,
	); err != nil {
		return fmt.Errorf("promote photo version: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE archive_entities SET active_photo_version_id = ?, updated_at = ? WHERE id = ?`,
		photo.ID, now, photo.EntityID,
	); err != nil {
		return fmt.Errorf("update active photo ref: %w", err)
	}

	oldValue := ""
	if previous != nil {
		oldValue = strconv.FormatInt(previous.ID, 10)
	}
	photo.IsActive = true
	return t.appendChange(ctx, photo.EntityID, ChangeActivePhotoChanged,
		oldValue, strconv.FormatInt(photo.ID, 10), "")
}

// PhotoVersionsByEntity returns all of an entity's photo versions, newest
// year first. Nothing is ever deleted; superseded versions remain for
// provenance.
func (s *Store) PhotoVersionsByEntity(ctx context.Context, entityID int64) ([]*PhotoVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photo_versions WHERE entity_id = ? ORDER BY year DESC, id DESC`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("list photo versions: %w", err)
	}
	defer rows.Close()

	var photos []*PhotoVersion
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}
