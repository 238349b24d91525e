package ingest

import (
	"context"
	"log/slog"

	"dossier/internal/archive"
	"dossier/internal/logging"
	"dossier/internal/normalize"
	"dossier/internal/services"
)

// RawRecord is one person record as produced by a raw source (bulk dump, API
// sync, ad-hoc JSON import). It is input only; persistence happens through
// the archive store.
type RawRecord struct {
	ExternalID string
	Name       string
	SchoolID   int64
	ProjectRef string
	Position   string
	PhotoURL   string
}

// Result reports the outcome of one import run.
type Result struct {
	Created           int `json:"created"`
	Skipped           int `json:"skipped"`
	MergedExternalIDs int `json:"merged_external_ids"`
}

// Importer groups raw records by normalization key and creates one canonical
// entity per group.
type Importer struct {
	store      *archive.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// New constructs an Importer.
func New(store *archive.Store, normalizer *normalize.Normalizer, logger *slog.Logger) *Importer {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &Importer{
		store:      store,
		normalizer: normalizer,
		logger:     logging.NewComponentLogger(logger, "ingest"),
	}
}

type group struct {
	key     string
	members []RawRecord
}

// groupByKey clusters records sharing a normalization key, preserving input
// order within and across groups. Records lacking a usable name or school are
// returned in skipped.
func groupByKey(normalizer *normalize.Normalizer, records []RawRecord) (groups []*group, skipped int) {
	index := make(map[string]*group)
	for _, rec := range records {
		key, ok := normalizer.Key(rec.Name, rec.SchoolID)
		if !ok || rec.ExternalID == "" {
			skipped++
			continue
		}
		g, exists := index[key]
		if !exists {
			g = &group{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, rec)
	}
	return groups, skipped
}

// Run imports raw records for one partner: one entity per normalization-key
// group, with the first member supplying the primary external identifier.
// Groups whose primary identifier is already claimed within the partner are
// counted as skipped. Re-running with identical input creates nothing.
//
// The claimed-identifier map is loaded once and threaded through the loop
// explicitly; entities created mid-run immediately claim their identifiers
// for later groups.
func (i *Importer) Run(ctx context.Context, partnerID int64, records []RawRecord) (Result, error) {
	result := Result{}
	if partnerID <= 0 {
		return result, services.Wrap(services.ErrInvalidScope, "ingest", "run", "partner id required", nil)
	}

	claimed, err := i.store.ClaimedExternalIDs(ctx, partnerID)
	if err != nil {
		return result, err
	}

	groups, invalid := groupByKey(i.normalizer, records)
	result.Skipped += invalid
	if invalid > 0 {
		i.logger.Warn("skipped records missing name or school", logging.Int("count", invalid))
	}

	for _, g := range groups {
		claimed, err = i.applyGroup(ctx, partnerID, g, claimed, &result)
		if err != nil {
			if services.ScopeFatal(err) {
				return result, err
			}
			// A failed group must not abort the rest of the run.
			result.Skipped++
			i.logger.Error("group import failed",
				logging.String("key", g.key),
				logging.Error(err))
		}
	}

	i.logger.Info("import finished",
		logging.Int64("partner", partnerID),
		logging.Int("created", result.Created),
		logging.Int("skipped", result.Skipped),
		logging.Int("merged_external_ids", result.MergedExternalIDs))
	return result, nil
}

// applyGroup creates one entity (plus its person records) inside a single
// transaction and returns the updated claimed-identifier map.
func (i *Importer) applyGroup(ctx context.Context, partnerID int64, g *group, claimed map[string]int64, result *Result) (map[string]int64, error) {
	primary := g.members[0]
	if _, taken := claimed[primary.ExternalID]; taken {
		result.Skipped++
		i.logger.Debug("primary external id already claimed",
			logging.String("external_id", primary.ExternalID),
			logging.String("key", g.key))
		return claimed, nil
	}

	title, stripped := i.normalizer.SplitTitle(primary.Name)
	position := firstPosition(g.members)
	photoURLs := collectPhotoURLs(g.members)

	var (
		entityID int64
		merged   int
	)
	err := i.store.InTx(ctx, func(tx *archive.Tx) error {
		entity, err := tx.CreateEntity(ctx, archive.NewEntity{
			PartnerID:         partnerID,
			SchoolID:          primary.SchoolID,
			CanonicalName:     stripped,
			TitlePrefix:       title,
			Position:          position,
			PrimaryExternalID: primary.ExternalID,
			NameKey:           g.key,
			PhotoURLs:         photoURLs,
		})
		if err != nil {
			return err
		}
		entityID = entity.ID

		for idx, member := range g.members {
			if idx > 0 {
				if _, taken := claimed[member.ExternalID]; taken {
					continue
				}
				added, err := tx.AddExternalID(ctx, entity.ID, partnerID, member.ExternalID)
				if err != nil {
					return err
				}
				if added {
					merged++
				}
			}
			if _, err := tx.UpsertRecord(ctx, &archive.PersonRecord{
				PartnerID:  partnerID,
				ExternalID: member.ExternalID,
				Name:       member.Name,
				SchoolID:   member.SchoolID,
				Position:   member.Position,
				PhotoURL:   member.PhotoURL,
				EntityID:   entity.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return claimed, err
	}

	claimed[primary.ExternalID] = entityID
	for idx, member := range g.members {
		if idx == 0 {
			continue
		}
		if _, taken := claimed[member.ExternalID]; !taken {
			claimed[member.ExternalID] = entityID
		}
	}
	result.Created++
	result.MergedExternalIDs += merged
	return claimed, nil
}

func firstPosition(members []RawRecord) string {
	for _, member := range members {
		if member.Position != "" {
			return member.Position
		}
	}
	return ""
}

func collectPhotoURLs(members []RawRecord) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, member := range members {
		if member.PhotoURL == "" {
			continue
		}
		if _, dup := seen[member.PhotoURL]; dup {
			continue
		}
		seen[member.PhotoURL] = struct{}{}
		urls = append(urls, member.PhotoURL)
	}
	return urls
}
