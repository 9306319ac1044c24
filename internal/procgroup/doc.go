// Package procgroup starts child processes as the leader of their own process
// group and signals the whole group, so helpers spawned by an encoder are
// stopped together with it.
//
// Call Prepare on an exec.Cmd before Start, then Terminate for a graceful stop
// and Kill to force the tree down. Both treat an already exited group as
// success.
package procgroup
