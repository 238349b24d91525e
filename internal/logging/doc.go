// Package logging constructs the slog loggers used throughout dossier and
// provides attr helper aliases so call sites avoid importing log/slog directly.
//
// Console (text) and JSON output formats are supported, selected by
// configuration. Log output is fanned out to stdout plus a file under the
// configured log directory.
package logging
