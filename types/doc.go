// Package types provides core type definitions and interfaces for the heartbeat library.
//
// This package contains shared types that are used across multiple packages in the
// heartbeat library. By keeping these types in a separate package, we avoid import cycles
// between the main heartbeat package and its internal implementations.
//
// Key types:
//   - EntityID: Identifier of a monitored entity
//   - Timestamp: Monotonic time value supplied by a Clock
//   - LivenessState: Alive, Suspect or Dead verdict
//   - Record: Snapshot of an entity's heartbeat state
//   - Event: Liveness transition delivered to subscribers
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
