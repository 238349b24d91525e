// Package archive persists canonical person entities in SQLite and exposes
// the mutations the import, matching, and execution stages drive.
//
// The Store manages database connections, schema migrations, and read paths;
// Tx groups the mutations of one candidate-group application (create, link,
// merge, photo promotion) into a single atomic step. Every structural mutation
// to an entity writes exactly one change_log row; the log is append-only and
// is the sole mechanism for reconstructing entity history after a merge.
//
// Entities are never hard-deleted. An entity absorbed by a merge is marked
// inactive with a merged_into redirect, and its external identifiers, aliases,
// and person-record links move to the survivor.
//
// Treat this package as the single source of truth for archive semantics; when
// adding tables or columns, add a migration under migrations/ rather than
// editing existing ones.
package archive
