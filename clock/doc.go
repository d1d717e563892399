// Package clock provides monotonic time sources for the heartbeat library.
//
// Two implementations are available:
//
//   - Real: backed by the runtime's monotonic clock and time.Ticker
//   - Manual: advanced explicitly by tests, firing due periodic callbacks
//     synchronously so sweeps happen at exact, reproducible instants
//
// Example:
//
//	clk := clock.NewManual(0)
//	coord := heartbeat.New(heartbeat.WithClock(clk))
//	...
//	clk.Advance(6 * time.Second) // runs every sweep due in the next 6s
package clock
