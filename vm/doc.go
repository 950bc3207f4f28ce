// Package vm runs compiled scripts.
//
// An Instance owns the per-type global arrays of one script, its current
// state and event queue, and the frames of the handler in progress.
// Handlers run to completion unless the Scheduler suspends them at a
// checkpoint; a suspended instance can be snapshotted, restored in another
// process and resumed.
//
// Pure intrinsics are implemented here. Intrinsics that reach the world
// outside the script go through the Host.
package vm
