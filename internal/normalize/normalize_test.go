package normalize_test

import (
	"testing"

	"dossier/internal/normalize"
)

func TestSplitTitle(t *testing.T) {
	n := normalize.New()
	cases := []struct {
		raw   string
		title string
		name  string
	}{
		{"Dr. Kovács János", "Dr", "Kovács János"},
		{"dr Kovács János", "dr", "Kovács János"},
		{"Prof. Szabó Anna", "Prof", "Szabó Anna"},
		{"Özv. Tóth Mária", "Özv", "Tóth Mária"},
		{"Kovács János", "", "Kovács János"},
		{"Drabik Péter", "", "Drabik Péter"},
		{"  Nagy Béla  ", "", "Nagy Béla"},
		{"Dr.", "", "Dr."},
		{"", "", ""},
	}
	for _, tc := range cases {
		title, name := n.SplitTitle(tc.raw)
		if title != tc.title || name != tc.name {
			t.Errorf("SplitTitle(%q) = (%q, %q), want (%q, %q)", tc.raw, title, name, tc.title, tc.name)
		}
	}
}

func TestSplitTitleExtraPrefixes(t *testing.T) {
	n := normalize.New("Vitéz.")
	title, name := n.SplitTitle("Vitéz Horthy Miklós")
	if title != "Vitéz" || name != "Horthy Miklós" {
		t.Fatalf("unexpected split: (%q, %q)", title, name)
	}
}

func TestKey(t *testing.T) {
	n := normalize.New()

	key, ok := n.Key("Dr. Kovács János", 5)
	if !ok {
		t.Fatal("expected key for valid record")
	}
	if key != "kovács jános|5" {
		t.Fatalf("unexpected key %q", key)
	}

	plain, ok := n.Key("KOVÁCS JÁNOS", 5)
	if !ok || plain != key {
		t.Fatalf("expected case-folded key to match, got %q vs %q", plain, key)
	}

	other, _ := n.Key("Kovács János", 6)
	if other == key {
		t.Fatal("expected different schools to produce different keys")
	}
}

func TestKeyRejectsIncompleteRecords(t *testing.T) {
	n := normalize.New()
	if _, ok := n.Key("", 5); ok {
		t.Fatal("expected missing name to be rejected")
	}
	if _, ok := n.Key("Kovács János", 0); ok {
		t.Fatal("expected missing school to be rejected")
	}
	if _, ok := n.Key("   ", 5); ok {
		t.Fatal("expected blank name to be rejected")
	}
}
