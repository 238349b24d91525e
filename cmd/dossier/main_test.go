package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dossier/internal/archive"
	"dossier/internal/config"
	"dossier/internal/runlock"
	"dossier/internal/services"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
lock_dir = %q

[logging]
level = "error"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "locks"))

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, err := runCommand(t, "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "dossier") {
		t.Errorf("help output missing command name: %s", out)
	}
}

func TestImportCommandFlow(t *testing.T) {
	configPath := writeTestConfig(t)

	recordsPath := filepath.Join(t.TempDir(), "records.json")
	dump := `[
        {"id": 1, "name": "Dr. Kovács János", "schoolRef": 5},
        {"id": 2, "name": "Kovács János", "schoolRef": 5},
        {"id": "3", "name": "Szabó Anna", "schoolRef": 5}
    ]`
	if err := os.WriteFile(recordsPath, []byte(dump), 0o644); err != nil {
		t.Fatalf("write records: %v", err)
	}

	out, err := runCommand(t, "--config", configPath, "--partner", "1", "--json", "import", recordsPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var result struct {
		Created           int `json:"created"`
		Skipped           int `json:"skipped"`
		MergedExternalIDs int `json:"merged_external_ids"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parse import output %q: %v", out, err)
	}
	if result.Created != 2 || result.Skipped != 0 || result.MergedExternalIDs != 1 {
		t.Fatalf("import result = %+v", result)
	}

	// Rerunning the same dump must be a no-op.
	out, err = runCommand(t, "--config", configPath, "--partner", "1", "--json", "import", recordsPath)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("parse second import output: %v", err)
	}
	if result.Created != 0 || result.Skipped != 2 {
		t.Fatalf("second import result = %+v", result)
	}

	out, err = runCommand(t, "--config", configPath, "--partner", "1", "--json", "records")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	var records []struct {
		ExternalID string
	}
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("parse records output: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d", len(records))
	}
}

func TestImportRequiresPartner(t *testing.T) {
	configPath := writeTestConfig(t)
	recordsPath := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(recordsPath, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write records: %v", err)
	}

	if _, err := runCommand(t, "--config", configPath, "import", recordsPath); err == nil {
		t.Fatal("expected error without --partner")
	}
}

func TestAnalyzeWithoutClassifier(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "--partner", "1", "--json", "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var report struct {
		PartnerID int64 `json:"partner_id"`
		Stats     struct {
			ScopeSize int `json:"scope_size"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("parse analyze output %q: %v", out, err)
	}
	if report.PartnerID != 1 || report.Stats.ScopeSize != 0 {
		t.Errorf("report = %+v", report)
	}
}

// Confirming a suggestion merges and links entities, so it must respect the
// same per-partner lock as import and execute.
func TestSuggestionConfirmRequiresPartnerLock(t *testing.T) {
	configPath := writeTestConfig(t)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := archive.Open(cfg)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	suggestion := &archive.Suggestion{
		PartnerID:  1,
		MemberIDs:  []int64{1, 2},
		Confidence: "medium",
		Reason:     "diminutive",
	}
	if err := store.SaveSuggestion(context.Background(), suggestion); err != nil {
		t.Fatalf("SaveSuggestion: %v", err)
	}
	store.Close()

	lock, err := runlock.Acquire(cfg.Paths.LockDir, 1)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, err = runCommand(t, "--config", configPath, "suggestions", "confirm", suggestion.ID)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("confirm under a held lock = %v, want transient lock error", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := runCommand(t, "--config", configPath, "suggestions", "confirm", suggestion.ID); err != nil {
		t.Fatalf("confirm after release: %v", err)
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output missing target path: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
