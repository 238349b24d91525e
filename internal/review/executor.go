package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"dossier/internal/archive"
	"dossier/internal/logging"
	"dossier/internal/match"
	"dossier/internal/normalize"
	"dossier/internal/services"
)

// Result reports what one execution run changed.
type Result struct {
	EntitiesCreated  int `json:"entities_created"`
	EntitiesMerged   int `json:"entities_merged"`
	RecordsLinked    int `json:"records_linked"`
	SuggestionsSaved int `json:"suggestions_saved"`
	GroupsFailed     int `json:"groups_failed"`
}

// Executor applies candidate groups to the archive. Deterministic and high
// confidence groups are executed; medium groups are stored as pending
// suggestions for manual review.
type Executor struct {
	store      *archive.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

// New constructs an Executor.
func New(store *archive.Store, normalizer *normalize.Normalizer, logger *slog.Logger) *Executor {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &Executor{
		store:      store,
		normalizer: normalizer,
		logger:     logging.NewComponentLogger(logger, "review"),
	}
}

// Execute applies the groups of one analysis run. Each group is applied in
// its own transaction; a failing group is logged and skipped so the rest of
// the run still lands. Applying the same groups twice changes nothing.
func (e *Executor) Execute(ctx context.Context, partnerID int64, groups []match.CandidateGroup) (Result, error) {
	result := Result{}
	if partnerID <= 0 {
		return result, services.Wrap(services.ErrInvalidScope, "review", "execute", "partner id required", nil)
	}
	start := time.Now()

	for _, group := range groups {
		if group.Confidence == match.ConfidenceMedium {
			if err := e.store.SaveSuggestion(ctx, &archive.Suggestion{
				PartnerID:  partnerID,
				MemberIDs:  group.MemberIDs,
				Confidence: group.Confidence,
				Reason:     group.Reason,
				Status:     archive.SuggestionPending,
			}); err != nil {
				result.GroupsFailed++
				e.logger.Error("save suggestion failed", logging.Error(err))
				continue
			}
			result.SuggestionsSaved++
			continue
		}

		if err := e.applyGroup(ctx, partnerID, group, &result); err != nil {
			if services.ScopeFatal(err) {
				return result, err
			}
			result.GroupsFailed++
			e.logger.Error("apply group failed",
				logging.Any("members", group.MemberIDs),
				logging.Error(err))
		}
	}

	e.logger.Info("execution finished",
		logging.Int64("partner", partnerID),
		logging.Int("entities_created", result.EntitiesCreated),
		logging.Int("entities_merged", result.EntitiesMerged),
		logging.Int("records_linked", result.RecordsLinked),
		logging.Int("suggestions_saved", result.SuggestionsSaved),
		logging.Int("groups_failed", result.GroupsFailed),
		logging.Duration("elapsed", time.Since(start)))
	return result, nil
}

// ConfirmSuggestion applies a pending suggestion as if it were a high
// confidence group, then marks it confirmed.
func (e *Executor) ConfirmSuggestion(ctx context.Context, id string) (Result, error) {
	result := Result{}
	suggestion, err := e.store.GetSuggestion(ctx, id)
	if err != nil {
		return result, err
	}
	if suggestion == nil {
		return result, services.Wrap(services.ErrValidation, "review", "confirm", fmt.Sprintf("suggestion %s not found", id), nil)
	}
	if suggestion.Status != archive.SuggestionPending {
		return result, services.Wrap(services.ErrValidation, "review", "confirm", fmt.Sprintf("suggestion %s is %s", id, suggestion.Status), nil)
	}

	group := match.CandidateGroup{
		MemberIDs:  suggestion.MemberIDs,
		Confidence: match.ConfidenceHigh,
		Reason:     suggestion.Reason,
	}
	if err := e.applyGroup(ctx, suggestion.PartnerID, group, &result); err != nil {
		return result, err
	}
	if err := e.store.UpdateSuggestionStatus(ctx, id, archive.SuggestionConfirmed); err != nil {
		return result, err
	}
	return result, nil
}

// DismissSuggestion marks a pending suggestion as dismissed without touching
// any entity.
func (e *Executor) DismissSuggestion(ctx context.Context, id string) error {
	suggestion, err := e.store.GetSuggestion(ctx, id)
	if err != nil {
		return err
	}
	if suggestion == nil {
		return services.Wrap(services.ErrValidation, "review", "dismiss", fmt.Sprintf("suggestion %s not found", id), nil)
	}
	if suggestion.Status != archive.SuggestionPending {
		return services.Wrap(services.ErrValidation, "review", "dismiss", fmt.Sprintf("suggestion %s is %s", id, suggestion.Status), nil)
	}
	return e.store.UpdateSuggestionStatus(ctx, id, archive.SuggestionDismissed)
}

// applyGroup resolves the group's members to existing entities and performs
// the resulting action in one transaction: nothing when all members already
// share an entity, linking when exactly one entity is involved, a merge when
// several are, and entity creation when none is.
func (e *Executor) applyGroup(ctx context.Context, partnerID int64, group match.CandidateGroup, result *Result) error {
	records, err := e.store.RecordsByIDs(ctx, group.MemberIDs)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	entityIDs, err := e.resolveEntities(ctx, partnerID, records)
	if err != nil {
		return err
	}
	if len(entityIDs) > 1 {
		// Survivor selection is deterministic: the lowest entity id wins.
		e.logger.Warn("candidate group spans multiple entities",
			logging.Any("entities", entityIDs),
			logging.Int64("survivor", entityIDs[0]),
			logging.Error(services.ErrMergeConflict))
	}

	return e.store.InTx(ctx, func(tx *archive.Tx) error {
		targetID := int64(0)
		switch {
		case len(entityIDs) == 0:
			entity, err := e.createFromRecords(ctx, tx, partnerID, records)
			if err != nil {
				return err
			}
			targetID = entity.ID
			result.EntitiesCreated++
		case len(entityIDs) == 1:
			targetID = entityIDs[0]
		default:
			// Lowest id survives; the others are folded into it.
			targetID = entityIDs[0]
			for _, loserID := range entityIDs[1:] {
				if err := tx.MergeEntity(ctx, targetID, loserID); err != nil {
					return err
				}
				result.EntitiesMerged++
			}
		}
		return e.linkRecords(ctx, tx, partnerID, targetID, records, result)
	})
}

// resolveEntities maps each record to an existing entity via its stored link
// or a normalization key hit, then returns the distinct active entity ids in
// ascending order.
func (e *Executor) resolveEntities(ctx context.Context, partnerID int64, records []*archive.PersonRecord) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	for _, rec := range records {
		if rec.Linked() {
			entity, err := e.store.ResolveEntity(ctx, rec.EntityID)
			if err != nil {
				return nil, err
			}
			if entity != nil {
				add(entity.ID)
			}
			continue
		}
		key, ok := e.normalizer.Key(rec.Name, rec.SchoolID)
		if !ok {
			continue
		}
		entityID, hit, err := e.store.EntityIDByKey(ctx, partnerID, key)
		if err != nil {
			return nil, err
		}
		if hit {
			add(entityID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// createFromRecords makes a new entity from the earliest record of a group
// that matched nothing existing.
func (e *Executor) createFromRecords(ctx context.Context, tx *archive.Tx, partnerID int64, records []*archive.PersonRecord) (*archive.Entity, error) {
	primary := records[0]
	title, stripped := e.normalizer.SplitTitle(primary.Name)
	key, ok := e.normalizer.Key(primary.Name, primary.SchoolID)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "review", "create entity",
			fmt.Sprintf("record %d has no usable name or school", primary.ID), nil)
	}

	var (
		position  string
		photoURLs []string
		seenURLs  = make(map[string]struct{})
	)
	for _, rec := range records {
		if position == "" {
			position = rec.Position
		}
		if rec.PhotoURL != "" {
			if _, dup := seenURLs[rec.PhotoURL]; !dup {
				seenURLs[rec.PhotoURL] = struct{}{}
				photoURLs = append(photoURLs, rec.PhotoURL)
			}
		}
	}

	return tx.CreateEntity(ctx, archive.NewEntity{
		PartnerID:         partnerID,
		SchoolID:          primary.SchoolID,
		CanonicalName:     stripped,
		TitlePrefix:       title,
		Position:          position,
		PrimaryExternalID: primary.ExternalID,
		NameKey:           key,
		PhotoURLs:         photoURLs,
	})
}

// linkRecords points every unlinked member at the target entity, claims its
// external identifier, and records name variants as aliases. A member whose
// name carries an honorific the entity lacks also upgrades the entity title.
func (e *Executor) linkRecords(ctx context.Context, tx *archive.Tx, partnerID, entityID int64, records []*archive.PersonRecord, result *Result) error {
	entity, err := tx.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if entity == nil {
		return fmt.Errorf("entity %d not found", entityID)
	}

	for _, rec := range records {
		if rec.EntityID == entityID {
			continue
		}
		if err := tx.LinkRecord(ctx, rec.ID, entityID); err != nil {
			return err
		}
		if rec.ExternalID != entity.PrimaryExternalID {
			if _, err := tx.AddExternalID(ctx, entityID, partnerID, rec.ExternalID); err != nil {
				return err
			}
		}
		result.RecordsLinked++

		title, stripped := e.normalizer.SplitTitle(rec.Name)
		key, ok := e.normalizer.Key(rec.Name, rec.SchoolID)
		if ok && key != entity.NameKey {
			if _, err := tx.AddAlias(ctx, entityID, stripped, key); err != nil {
				return err
			}
		}
		if title != "" && entity.TitlePrefix == "" {
			if err := tx.UpdateIdentity(ctx, entityID, entity.CanonicalName, title, entity.NameKey, entity.SchoolID); err != nil {
				return err
			}
			entity.TitlePrefix = title
		}
	}
	return nil
}
