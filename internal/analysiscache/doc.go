// Package analysiscache persists probe results between scans in a SQLite
// database.
//
// Entries are keyed by absolute path and are valid only while the live file's
// modification time and size both match the stored values; any mismatch is a
// miss and the stale row is discarded. The stored compliance status is kept
// for reporting only: callers always re-evaluate cached attributes against the
// current standards.
//
// Writes are buffered by Put and committed in one transaction by Flush. Every
// method is safe to call on a nil *Store, which behaves as an always-empty
// cache, so a cache that fails to open never blocks scanning.
package analysiscache
