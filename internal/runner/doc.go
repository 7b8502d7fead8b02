// Package runner hosts a skedge.Scheduler built from config.
//
// One goroutine (Run) owns the scheduler. It calls RunPending, then sleeps
// until the earlier of the next poll tick and the next job run. Apply,
// RunAll and Status hand closures to that goroutine, so callers never touch
// the scheduler concurrently.
//
// Job lifecycle events are published on the event bus; Recorder turns them
// into run history in storage.
package runner
