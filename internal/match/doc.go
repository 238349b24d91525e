// Package match proposes candidate groups of person records that describe
// the same individual. Deterministic grouping runs first on normalization
// keys; records it cannot place go through an LLM classifier that returns
// high or medium confidence groups. The classifier is best effort: when it
// is unreachable the affected records are simply reported as unmatched.
package match
