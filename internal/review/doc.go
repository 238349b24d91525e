// Package review turns candidate groups into archive mutations. Deterministic
// and high confidence groups are executed immediately: records link to an
// existing entity, duplicate entities merge, or a new entity is created.
// Medium confidence groups become pending suggestions that a human confirms
// or dismisses later.
package review
