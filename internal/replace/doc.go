// Package replace decides what happens to an original file after its encode
// completes. A smaller encode takes the original's place; a larger one is
// discarded when configured to. Either way the analysis cache forgets the
// original so the next scan re-probes it.
package replace
