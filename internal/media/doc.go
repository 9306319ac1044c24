// Package media defines the in-memory model of one library file: its
// filesystem facts, probed attributes, classification, and compliance state.
//
// A Record's compliance state is guarded by its own mutex. Probing workers
// claim a record with TryClaim before touching it, so a record is never probed
// twice concurrently and no global lock is held across records.
package media
