// Package config loads, validates, and normalizes dossier configuration.
//
// Configuration is read from a TOML file (default ~/.config/dossier/config.toml,
// or dossier.toml in the working directory). Every field has a usable default
// so a missing file is not an error. Path fields are tilde-expanded and made
// absolute during normalization.
package config
