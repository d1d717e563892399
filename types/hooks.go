package types

import (
	"context"
	"time"
)

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	// At is the clock time the sweep evaluated entities against.
	At Timestamp

	// Entities is the number of entities evaluated.
	Entities int

	// Transitions is the number of events emitted.
	Transitions int

	// Duration is the wall time spent in the sweep.
	Duration time.Duration
}

// Hooks defines callbacks for Coordinator lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the sweep. Hooks receive the coordinator's lifecycle
// context which will be cancelled during shutdown.
//
// Hook execution behavior:
//   - Hooks run concurrently and may not complete before Stop() returns
//   - Hook errors are logged but don't fail coordinator operations
//
// Liveness transitions are delivered to Subscribers, not hooks.
type Hooks struct {
	// OnSweep is called after every completed sweep.
	OnSweep func(ctx context.Context, stats SweepStats) error

	// OnError is called when a recoverable error occurs, such as a
	// subscriber failure.
	OnError func(ctx context.Context, err error) error
}
