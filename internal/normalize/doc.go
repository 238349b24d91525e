// Package normalize turns raw person names into comparable forms: it strips
// honorific prefixes (Dr., Prof., ...) into a separate title and computes the
// normalization key (folded name + school) used for deterministic matching.
//
// Folding uses Unicode case folding over NFC-normalized text rather than ASCII
// lowercasing; the names this engine sees are mostly Hungarian.
package normalize
