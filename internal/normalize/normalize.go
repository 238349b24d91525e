package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// builtinTitlePrefixes are honorifics stripped from the front of raw names.
// Comparison is case-insensitive and tolerates a trailing dot.
var builtinTitlePrefixes = []string{
	"Dr",
	"Prof",
	"PhD",
	"Ifj",
	"Id",
	"Özv",
}

// Normalizer strips honorific prefixes and produces normalization keys.
// The zero value is not usable; construct with New.
type Normalizer struct {
	prefixes []string
	folder   cases.Caser
}

// New builds a Normalizer recognizing the built-in honorifics plus any
// configured extras.
func New(extraPrefixes ...string) *Normalizer {
	prefixes := make([]string, 0, len(builtinTitlePrefixes)+len(extraPrefixes))
	prefixes = append(prefixes, builtinTitlePrefixes...)
	for _, prefix := range extraPrefixes {
		trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ".")
		if trimmed != "" {
			prefixes = append(prefixes, trimmed)
		}
	}
	return &Normalizer{
		prefixes: prefixes,
		folder:   cases.Fold(),
	}
}

// SplitTitle separates a leading honorific from a raw name. The returned
// title carries no trailing dot; the name is trimmed. When no honorific is
// present the title is empty and the name is returned trimmed.
func (n *Normalizer) SplitTitle(raw string) (title, name string) {
	name = strings.TrimSpace(raw)
	if name == "" {
		return "", ""
	}
	for _, prefix := range n.prefixes {
		rest, ok := cutPrefixFold(name, prefix)
		if !ok {
			continue
		}
		// The honorific must be its own token: "Dr. X" or "Dr X", not "Drabik".
		switch {
		case strings.HasPrefix(rest, "."):
			rest = rest[1:]
		case strings.HasPrefix(rest, " "):
		default:
			continue
		}
		stripped := strings.TrimSpace(rest)
		if stripped == "" {
			continue
		}
		return name[:len(prefix)], stripped
	}
	return "", name
}

// Fold returns the case-folded, NFC-normalized form of a name used in
// normalization keys.
func (n *Normalizer) Fold(name string) string {
	return n.folder.String(norm.NFC.String(strings.TrimSpace(name)))
}

// Key computes the normalization key for a raw name and school. The honorific
// is stripped before folding. ok is false when the record lacks a usable name
// or school; such records are skipped, not treated as errors.
func (n *Normalizer) Key(rawName string, schoolID int64) (key string, ok bool) {
	if schoolID <= 0 {
		return "", false
	}
	_, name := n.SplitTitle(rawName)
	if name == "" {
		return "", false
	}
	return n.Fold(name) + "|" + strconv.FormatInt(schoolID, 10), true
}

// cutPrefixFold is strings.CutPrefix under simple Unicode case folding.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
