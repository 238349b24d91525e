package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// PartnerStats summarizes a partner's archive state for diagnostic output.
type PartnerStats struct {
	Entities        int
	InactiveMerged  int
	Records         int
	UnlinkedRecords int
	Suggestions     int
}

// Stats returns entity and record counts for a partner scope.
func (s *Store) Stats(ctx context.Context, partnerID int64) (PartnerStats, error) {
	stats := PartnerStats{}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(CASE WHEN is_active = 0 THEN 1 ELSE 0 END), 0)
         FROM archive_entities WHERE partner_id = ?`, partnerID)
	if err := row.Scan(&stats.Entities, &stats.InactiveMerged); err != nil {
		return stats, fmt.Errorf("entity stats: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(CASE WHEN entity_id IS NULL THEN 1 ELSE 0 END), 0)
         FROM person_records WHERE partner_id = ?`, partnerID)
	if err := row.Scan(&stats.Records, &stats.UnlinkedRecords); err != nil {
		return stats, fmt.Errorf("record stats: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM match_suggestions WHERE partner_id = ? AND status = 'pending'`, partnerID)
	if err := row.Scan(&stats.Suggestions); err != nil {
		return stats, fmt.Errorf("suggestion stats: %w", err)
	}
	return stats, nil
}

// DatabaseHealth describes the condition of the archive database file.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	IntegrityCheck   bool
	Error            string
}

// CheckHealth returns diagnostic information about the archive database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("archive database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat archive database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("archive database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("archive database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping archive database: %w", err)
	}
	health.DatabaseReadable = true

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
