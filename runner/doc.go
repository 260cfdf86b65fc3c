// Package runner hosts workflow runs for long-lived processes.
//
// A Runner wraps an engine.Engine with admission control and run tracking:
// at most MaxConcurrentRuns runs execute at once (further callers wait for a
// slot or give up when their context ends), every run gets an identifier
// before it starts, and an in-flight run can be cancelled by that identifier.
// Cancelling stops further steps; memory and events already produced by the
// run are not rolled back.
package runner
