// Package config loads, normalizes, and validates librarian configuration.
//
// Configuration is TOML. Load applies defaults, decodes the file when present,
// expands paths, folds policy spellings into canonical values, and rejects
// settings that cannot work together (for example a target bitrate outside the
// configured bitrate limits). The package has no internal dependencies; the
// CLI projects these sections into the typed options each pipeline component
// accepts.
package config
