package review

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"dossier/internal/archive"
	"dossier/internal/logging"
	"dossier/internal/match"
	"dossier/internal/normalize"
	"dossier/internal/testsupport"
)

func newExecutor(t *testing.T) (*Executor, *archive.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return New(store, normalize.New(), logging.NewNop()), store
}

func TestExecuteCreatesEntityFromUnmatchedGroup(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Dr. Kovács János")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Jani")

	result, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceHigh, Reason: "nickname"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.EntitiesCreated != 1 || result.RecordsLinked != 2 {
		t.Fatalf("result = %+v", result)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("entities = %d", len(entities))
	}
	entity := entities[0]
	if entity.CanonicalName != "Kovács János" || entity.TitlePrefix != "Dr" {
		t.Errorf("entity = %q / %q", entity.CanonicalName, entity.TitlePrefix)
	}
	if entity.PrimaryExternalID != "a" {
		t.Errorf("primary external id = %q", entity.PrimaryExternalID)
	}

	aliases, err := store.AliasesByEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("AliasesByEntity: %v", err)
	}
	if len(aliases) != 1 || aliases[0].AliasName != "Kovács Jani" {
		t.Errorf("aliases = %+v", aliases)
	}

	claimed, err := store.ClaimedExternalIDs(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimedExternalIDs: %v", err)
	}
	if claimed["a"] != entity.ID || claimed["b"] != entity.ID {
		t.Errorf("claimed = %v", claimed)
	}
}

func TestExecuteLinksToExistingEntity(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	entity := testsupport.CreateEntity(t, store, 1, 5, "Kovács János", "old-1")
	rec := testsupport.AddRecord(t, store, 1, 5, 0, "new-1", "Dr. Kovács János")

	result, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(rec), Confidence: match.ConfidenceDeterministic},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.EntitiesCreated != 0 || result.RecordsLinked != 1 {
		t.Fatalf("result = %+v", result)
	}

	refreshed, err := store.GetEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	// The record's honorific upgrades the untitled entity.
	if refreshed.TitlePrefix != "Dr" {
		t.Errorf("title = %q", refreshed.TitlePrefix)
	}

	records, err := store.RecordsByEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("RecordsByEntity: %v", err)
	}
	if len(records) != 1 || records[0].ID != rec.ID {
		t.Errorf("records = %+v", records)
	}
}

func TestExecuteMergesEntities(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	survivor := testsupport.CreateEntity(t, store, 1, 5, "Kovács János", "a")
	loser := testsupport.CreateEntity(t, store, 1, 5, "Kovács Jani", "b")
	r1 := testsupport.AddRecord(t, store, 1, 5, survivor.ID, "a", "Kovács János")
	r2 := testsupport.AddRecord(t, store, 1, 5, loser.ID, "b", "Kovács Jani")

	result, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceHigh, Reason: "nickname"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.EntitiesMerged != 1 {
		t.Fatalf("result = %+v", result)
	}

	absorbed, err := store.GetEntity(ctx, loser.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if absorbed.IsActive || absorbed.MergedInto != survivor.ID {
		t.Errorf("loser = %+v", absorbed)
	}

	records, err := store.RecordsByEntity(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("RecordsByEntity: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("survivor records = %d", len(records))
	}
}

func TestExecuteLogsMergeSurvivorDecision(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	var buf bytes.Buffer
	executor := New(store, normalize.New(), slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	survivor := testsupport.CreateEntity(t, store, 1, 5, "Kovács János", "a")
	loser := testsupport.CreateEntity(t, store, 1, 5, "Kovács Jani", "b")
	r1 := testsupport.AddRecord(t, store, 1, 5, survivor.ID, "a", "Kovács János")
	r2 := testsupport.AddRecord(t, store, 1, 5, loser.ID, "b", "Kovács Jani")

	if _, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceHigh},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "merge conflict") || !strings.Contains(logged, "survivor") {
		t.Errorf("merge decision not logged: %s", logged)
	}
}

func TestExecuteMediumBecomesSuggestion(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács Kati")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Katalin")

	result, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceMedium, Reason: "diminutive"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.SuggestionsSaved != 1 || result.EntitiesCreated != 0 {
		t.Fatalf("result = %+v", result)
	}

	pending, err := store.Suggestions(ctx, 1, archive.SuggestionPending)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(pending) != 1 || pending[0].Reason != "diminutive" {
		t.Fatalf("pending = %+v", pending)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("medium group must not create entities, got %d", len(entities))
	}
}

// Re-running the same analysis reproposes the same medium group; the pending
// suggestion must not multiply.
func TestExecuteRerunKeepsOnePendingSuggestion(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács Kati")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Katalin")
	groups := []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceMedium, Reason: "diminutive"},
	}

	if _, err := executor.Execute(ctx, 1, groups); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := executor.Execute(ctx, 1, groups); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	pending, err := store.Suggestions(ctx, 1, archive.SuggestionPending)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending suggestions after re-run = %d", len(pending))
	}

	// A settled suggestion must not block the group from being proposed again.
	if err := executor.DismissSuggestion(ctx, pending[0].ID); err != nil {
		t.Fatalf("DismissSuggestion: %v", err)
	}
	if _, err := executor.Execute(ctx, 1, groups); err != nil {
		t.Fatalf("third Execute: %v", err)
	}
	pending, err = store.Suggestions(ctx, 1, archive.SuggestionPending)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending suggestions after dismissal = %d", len(pending))
	}
}

func TestConfirmSuggestion(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács Kati")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Katalin")
	if _, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceMedium, Reason: "diminutive"},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	pending, err := store.Suggestions(ctx, 1, archive.SuggestionPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v, err = %v", pending, err)
	}

	result, err := executor.ConfirmSuggestion(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("ConfirmSuggestion: %v", err)
	}
	if result.EntitiesCreated != 1 || result.RecordsLinked != 2 {
		t.Fatalf("result = %+v", result)
	}

	confirmed, err := store.GetSuggestion(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("GetSuggestion: %v", err)
	}
	if confirmed.Status != archive.SuggestionConfirmed {
		t.Errorf("status = %q", confirmed.Status)
	}

	// A suggestion settles exactly once.
	if _, err := executor.ConfirmSuggestion(ctx, pending[0].ID); err == nil {
		t.Error("expected error confirming a confirmed suggestion")
	}
}

func TestDismissSuggestion(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács Kati")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Katalin")
	if _, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceMedium},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	pending, _ := store.Suggestions(ctx, 1, archive.SuggestionPending)
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}

	if err := executor.DismissSuggestion(ctx, pending[0].ID); err != nil {
		t.Fatalf("DismissSuggestion: %v", err)
	}
	entities, _ := store.EntitiesByPartner(ctx, 1, false)
	if len(entities) != 0 {
		t.Errorf("dismissal must not create entities")
	}
	if err := executor.DismissSuggestion(ctx, pending[0].ID); err == nil {
		t.Error("expected error dismissing a dismissed suggestion")
	}
}

// Applying {A,B} and later {A,C} must converge on one entity holding all
// three records, regardless of run boundaries.
func TestExecuteSuccessiveGroupsConverge(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	a := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács János")
	b := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Jani")
	c := testsupport.AddRecord(t, store, 1, 5, 0, "c", "Dr. Kovács János")

	if _, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(a, b), Confidence: match.ConfidenceHigh},
	}); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(a, c), Confidence: match.ConfidenceHigh},
	}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	entities, err := store.EntitiesByPartner(ctx, 1, false)
	if err != nil {
		t.Fatalf("EntitiesByPartner: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("entities = %d", len(entities))
	}
	records, err := store.RecordsByEntity(ctx, entities[0].ID)
	if err != nil {
		t.Fatalf("RecordsByEntity: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d", len(records))
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács János")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Jani")
	groups := []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceHigh},
	}

	if _, err := executor.Execute(ctx, 1, groups); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	result, err := executor.Execute(ctx, 1, groups)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if result.EntitiesCreated != 0 || result.RecordsLinked != 0 || result.EntitiesMerged != 0 {
		t.Fatalf("second run result = %+v", result)
	}

	entities, _ := store.EntitiesByPartner(ctx, 1, false)
	if len(entities) != 1 {
		t.Errorf("entities = %d", len(entities))
	}
}

func TestExecuteIsolatesFailingGroups(t *testing.T) {
	executor, store := newExecutor(t)
	ctx := context.Background()

	broken := testsupport.AddRecord(t, store, 1, 0, 0, "x", "")
	r1 := testsupport.AddRecord(t, store, 1, 5, 0, "a", "Kovács János")
	r2 := testsupport.AddRecord(t, store, 1, 5, 0, "b", "Kovács Jani")

	result, err := executor.Execute(ctx, 1, []match.CandidateGroup{
		{MemberIDs: testsupport.RecordIDs(broken), Confidence: match.ConfidenceHigh},
		{MemberIDs: testsupport.RecordIDs(r1, r2), Confidence: match.ConfidenceHigh},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.GroupsFailed != 1 || result.EntitiesCreated != 1 {
		t.Fatalf("result = %+v", result)
	}
}
