// Command dossier maintains a deduplicated archive of partner person
// records: bulk import, match analysis, review execution, suggestion
// triage, and photo versioning.
package main
