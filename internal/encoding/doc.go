// Package encoding turns analyzed records into ffmpeg jobs and supervises them.
//
// PrepareJobs selects the records worth re-encoding and assigns output paths.
// Builder produces the deterministic ffmpeg argument list for one job,
// probing `ffmpeg -encoders` once to confirm a requested GPU encoder exists
// and falling back to the software encoder of the same family when it does
// not. Supervisor runs jobs one at a time, each as the leader of its own
// process group, parses the stats lines ffmpeg writes to stderr into
// progress events, and on cancellation tears down the whole process tree and
// removes the partial output.
//
// Observers receive events synchronously from the supervisor goroutine, so
// events for a given job arrive in the order they happened. Job state may be
// read concurrently through Job.Snapshot while a run is in progress.
package encoding
