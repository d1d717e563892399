package heartbeat

import "github.com/arloliu/heartbeat/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on the root package, which
// keeps the import graph acyclic while users still write heartbeat.Event,
// heartbeat.Logger and so on.
type (
	EntityID        = types.EntityID
	Timestamp       = types.Timestamp
	LivenessState   = types.LivenessState
	Policy          = types.Policy
	Record          = types.Record
	Event           = types.Event
	SubscriptionID  = types.SubscriptionID
	SweepStats      = types.SweepStats
	SubscriberError = types.SubscriberError
)

// Re-export interfaces from the types package for convenience.
type (
	Clock            = types.Clock
	CancelHandle     = types.CancelHandle
	Subscriber       = types.Subscriber
	SubscriberFunc   = types.SubscriberFunc
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export constants from the types package.
const (
	StateAlive   = types.StateAlive
	StateSuspect = types.StateSuspect
	StateDead    = types.StateDead

	PolicyFixedTimeout = types.PolicyFixedTimeout
	PolicyAccrual      = types.PolicyAccrual
)
