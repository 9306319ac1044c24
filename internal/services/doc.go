// Package services defines shared utilities consumed by the scan, probe and
// encode pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can tell tool
//     failures, configuration problems and cancellations apart.
package services
