// Package language maps the language tags found in container metadata onto a
// single canonical form so subtitle tracks can be compared against the
// configured preferences regardless of how the muxer spelled them.
package language
