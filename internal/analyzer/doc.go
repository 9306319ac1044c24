// Package analyzer probes media files in parallel and records the compliance
// outcome on each record.
//
// The pool size is the smallest of the CPU count, the configured thread count
// and the number of files. Each record is claimed before probing, so a record
// submitted twice is probed once. Per-file failures become StatusError with a
// descriptive issue; only a prober that cannot be started at all aborts the run.
package analyzer
