// Package source feeds heartbeats and entity lists into a Coordinator.
//
// The core library has no transport of its own. Adapters here translate
// external signals into calls on the coordinator's public surface:
//
//   - Static: fixed entity list registered at startup
//   - SubjectListener: core NATS messages on "<prefix>.<entityID>"
//   - KVWatcher: JetStream KV puts on "<prefix>.<entityID>"
//
// *heartbeat.Coordinator satisfies both HeartbeatSink and Registrar.
package source

import "github.com/arloliu/heartbeat/types"

// HeartbeatSink receives heartbeats from an adapter.
type HeartbeatSink interface {
	Heartbeat(id types.EntityID) error
}

// Registrar registers entities ahead of their first heartbeat.
type Registrar interface {
	Register(id types.EntityID) error
}
