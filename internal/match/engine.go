package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"dossier/internal/archive"
	"dossier/internal/logging"
	"dossier/internal/normalize"
	"dossier/internal/services"
	"dossier/internal/services/llm"
)

const defaultBatchSize = 40

// ProgressFunc receives coarse progress notifications during analysis.
type ProgressFunc func(stage, message string)

// Engine analyzes a partner's unresolved person records in two phases:
// deterministic clustering on the normalization key, then batched
// classification of the remainder.
type Engine struct {
	store      *archive.Store
	normalizer *normalize.Normalizer
	client     *llm.Client
	batchSize  int
	logger     *slog.Logger
	progress   ProgressFunc
}

// Option customizes the engine.
type Option func(*Engine)

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithBatchSize overrides the classification batch size.
func WithBatchSize(size int) Option {
	return func(e *Engine) {
		if size >= 2 {
			e.batchSize = size
		}
	}
}

// New constructs an Engine. The client may be unconfigured; analysis then
// degrades to deterministic matching only.
func New(store *archive.Store, normalizer *normalize.Normalizer, client *llm.Client, logger *slog.Logger, opts ...Option) *Engine {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	engine := &Engine{
		store:      store,
		normalizer: normalizer,
		client:     client,
		batchSize:  defaultBatchSize,
		logger:     logging.NewComponentLogger(logger, "match"),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) notify(stage, message string) {
	if e.progress != nil {
		e.progress(stage, message)
	}
}

// Analyze produces candidate groups for the partner's person records. With
// onlyNew set, the scope holds only records not yet linked to an entity; a
// full-scope run also surfaces duplicates among already linked records, such
// as two entities whose records share a normalization key. Classifier
// failures never fail the run; affected records are reported as unmatched
// instead.
func (e *Engine) Analyze(ctx context.Context, partnerID int64, onlyNew bool) (*Report, error) {
	if partnerID <= 0 {
		return nil, services.Wrap(services.ErrInvalidScope, "match", "analyze", "partner id required", nil)
	}

	records, err := e.store.RecordsByPartner(ctx, partnerID, onlyNew)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "match", "analyze", "load unresolved records", err)
	}

	report := &Report{PartnerID: partnerID}
	report.Stats.ScopeSize = len(records)
	e.notify("deterministic", fmt.Sprintf("clustering %d records", len(records)))

	remainder := e.deterministicPhase(ctx, partnerID, records, report)

	if len(remainder) > 0 {
		e.notify("classify", fmt.Sprintf("classifying %d records", len(remainder)))
		e.classifyPhase(ctx, remainder, report)
	}

	e.logger.Info("analysis finished",
		logging.Int64("partner", partnerID),
		logging.Bool("only_new", onlyNew),
		logging.Int("scope", report.Stats.ScopeSize),
		logging.Int("deterministic_groups", report.Stats.DeterministicGroups),
		logging.Int("ai_high", report.Stats.AIHighGroups),
		logging.Int("ai_medium", report.Stats.AIMediumGroups),
		logging.Int("unmatched", report.Stats.Unmatched))
	return report, nil
}

type keyCluster struct {
	key     string
	members []*archive.PersonRecord
}

// deterministicPhase clusters records by normalization key. Multi-member
// clusters, and single records whose key resolves to an existing entity by
// name or alias, become deterministic groups. Everything else is returned
// for classification.
func (e *Engine) deterministicPhase(ctx context.Context, partnerID int64, records []*archive.PersonRecord, report *Report) []*archive.PersonRecord {
	index := make(map[string]*keyCluster)
	var clusters []*keyCluster
	for _, rec := range records {
		key, ok := e.normalizer.Key(rec.Name, rec.SchoolID)
		if !ok {
			report.Stats.Unmatched++
			continue
		}
		cluster, exists := index[key]
		if !exists {
			cluster = &keyCluster{key: key}
			index[key] = cluster
			clusters = append(clusters, cluster)
		}
		cluster.members = append(cluster.members, rec)
	}

	var remainder []*archive.PersonRecord
	for _, cluster := range clusters {
		entityID, hit, err := e.store.EntityIDByKey(ctx, partnerID, cluster.key)
		if err != nil {
			e.logger.Warn("entity key lookup failed",
				logging.String("key", cluster.key),
				logging.Error(err))
			hit = false
		}

		if len(cluster.members) < 2 && !hit {
			remainder = append(remainder, cluster.members[0])
			continue
		}

		ids := make([]int64, 0, len(cluster.members))
		for _, member := range cluster.members {
			ids = append(ids, member.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		reason := "records share a normalization key"
		if hit {
			reason = fmt.Sprintf("matches entity %d by name or alias key", entityID)
			report.Stats.EntityHits++
		}
		report.Deterministic = append(report.Deterministic, CandidateGroup{
			MemberIDs:  ids,
			Confidence: ConfidenceDeterministic,
			Reason:     reason,
		})
		report.Stats.DeterministicGroups++
	}
	return remainder
}

// classifyPhase runs the remainder through the classifier in batches sorted
// by folded name, so similar names land in the same batch.
func (e *Engine) classifyPhase(ctx context.Context, remainder []*archive.PersonRecord, report *Report) {
	if e.client == nil || !e.client.Configured() {
		e.logger.Warn("classifier not configured, leaving records unmatched",
			logging.Int("count", len(remainder)))
		report.Stats.Unmatched += len(remainder)
		return
	}

	sorted := make([]*archive.PersonRecord, len(remainder))
	copy(sorted, remainder)
	sort.Slice(sorted, func(i, j int) bool {
		return e.normalizer.Fold(sorted[i].Name) < e.normalizer.Fold(sorted[j].Name)
	})

	scope := make(map[int64]struct{}, len(sorted))
	for _, rec := range sorted {
		scope[rec.ID] = struct{}{}
	}

	var collected []CandidateGroup
	for start := 0; start < len(sorted); start += e.batchSize {
		end := start + e.batchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]
		e.notify("classify", fmt.Sprintf("batch %d-%d of %d", start+1, end, len(sorted)))

		groups, err := e.classifyBatch(ctx, batch, scope)
		if err != nil {
			e.logger.Warn("classification batch failed",
				logging.Int("batch_size", len(batch)),
				logging.Error(err))
			continue
		}
		collected = append(collected, groups...)
	}

	report.AI = mergeOverlapping(collected)
	matched := make(map[int64]struct{})
	for _, group := range report.AI {
		switch group.Confidence {
		case ConfidenceHigh:
			report.Stats.AIHighGroups++
		case ConfidenceMedium:
			report.Stats.AIMediumGroups++
		}
		for _, id := range group.MemberIDs {
			matched[id] = struct{}{}
		}
	}
	report.Stats.Unmatched += len(remainder) - len(matched)
}

func (e *Engine) classifyBatch(ctx context.Context, batch []*archive.PersonRecord, scope map[int64]struct{}) ([]CandidateGroup, error) {
	prompt, err := buildClassifyPrompt(batch)
	if err != nil {
		return nil, err
	}
	content, err := e.client.CompleteJSON(ctx, classifySystemPrompt, prompt)
	if err != nil {
		return nil, services.Wrap(services.ErrClassificationUnavailable, "match", "classify", "completion request", err)
	}
	groups, rejected, err := parseClassifyResponse(content, scope)
	if err != nil {
		return nil, services.Wrap(services.ErrClassificationUnavailable, "match", "classify", "parse response", err)
	}
	for _, reason := range rejected {
		e.logger.Debug("rejected classifier group", logging.String("reason", reason))
	}
	return groups, nil
}

// mergeOverlapping unions groups that share a member. A merged group keeps
// the first reason and drops to medium confidence if any input was medium.
func mergeOverlapping(groups []CandidateGroup) []CandidateGroup {
	if len(groups) < 2 {
		return groups
	}

	parent := make([]int, len(groups))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[int64]int)
	for i, group := range groups {
		for _, id := range group.MemberIDs {
			if j, seen := owner[id]; seen {
				parent[find(i)] = find(j)
			} else {
				owner[id] = i
			}
		}
	}

	merged := make(map[int]*CandidateGroup)
	var order []int
	for i, group := range groups {
		root := find(i)
		target, exists := merged[root]
		if !exists {
			copied := group
			copied.MemberIDs = append([]int64(nil), group.MemberIDs...)
			merged[root] = &copied
			order = append(order, root)
			continue
		}
		seen := make(map[int64]struct{}, len(target.MemberIDs))
		for _, id := range target.MemberIDs {
			seen[id] = struct{}{}
		}
		for _, id := range group.MemberIDs {
			if _, dup := seen[id]; !dup {
				target.MemberIDs = append(target.MemberIDs, id)
			}
		}
		if group.Confidence == ConfidenceMedium {
			target.Confidence = ConfidenceMedium
		}
	}

	result := make([]CandidateGroup, 0, len(order))
	for _, root := range order {
		group := merged[root]
		sort.Slice(group.MemberIDs, func(i, j int) bool { return group.MemberIDs[i] < group.MemberIDs[j] })
		result = append(result, *group)
	}
	return result
}
