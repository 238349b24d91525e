package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

const suggestionColumns = "id, partner_id, member_ids, confidence, reason, status, created_at, updated_at"

// SaveSuggestion persists a candidate group excluded from automatic execution
// so a human can confirm or dismiss it later. Member ids are stored in
// ascending order; saving a group that already has a pending row for the
// partner updates that row instead of inserting a second one.
func (s *Store) SaveSuggestion(ctx context.Context, suggestion *Suggestion) error {
	if suggestion == nil {
		return errors.New("suggestion is nil")
	}
	if suggestion.Status == "" {
		suggestion.Status = SuggestionPending
	}
	ids := append([]int64(nil), suggestion.MemberIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	suggestion.MemberIDs = ids
	members, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode member ids: %w", err)
	}
	if suggestion.ID == "" {
		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM match_suggestions WHERE partner_id = ? AND member_ids = ? AND status = ?`,
			suggestion.PartnerID, string(members), string(SuggestionPending),
		).Scan(&existing)
		switch {
		case err == nil:
			suggestion.ID = existing
		case errors.Is(err, sql.ErrNoRows):
			suggestion.ID = uuid.NewString()
		default:
			return fmt.Errorf("find pending suggestion: %w", err)
		}
	}
	now := timestamp()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_suggestions (`+suggestionColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
             member_ids = excluded.member_ids,
             confidence = excluded.confidence,
             reason = excluded.reason,
             updated_at = excluded.updated_at`,
		suggestion.ID,
		suggestion.PartnerID,
		string(members),
		suggestion.Confidence,
		suggestion.Reason,
		string(suggestion.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save suggestion: %w", err)
	}
	return nil
}

func scanSuggestion(scanner interface{ Scan(dest ...any) error }) (*Suggestion, error) {
	var (
		sg         Suggestion
		members    string
		statusStr  string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&sg.ID, &sg.PartnerID, &members, &sg.Confidence, &sg.Reason, &statusStr, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &sg.MemberIDs); err != nil {
		return nil, fmt.Errorf("decode member ids: %w", err)
	}
	sg.Status = SuggestionStatus(statusStr)
	if created, err := parseTimeString(createdRaw); err == nil {
		sg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		sg.UpdatedAt = updated
	}
	return &sg, nil
}

// Suggestions lists a partner's suggestions, optionally filtered by status.
func (s *Store) Suggestions(ctx context.Context, partnerID int64, status SuggestionStatus) ([]*Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM match_suggestions WHERE partner_id = ?`
	args := []any{partnerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []*Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

// GetSuggestion fetches one suggestion by identifier, or nil when absent.
func (s *Store) GetSuggestion(ctx context.Context, id string) (*Suggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+suggestionColumns+` FROM match_suggestions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get suggestion: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSuggestion(rows)
}

// UpdateSuggestionStatus transitions a suggestion's lifecycle state.
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status SuggestionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_suggestions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update suggestion status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("suggestion %s not found", id)
	}
	return nil
}
