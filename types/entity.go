package types

import "context"

// EntityID identifies a monitored entity.
//
// IDs are opaque to the library and immutable once registered. The empty
// string is not a valid ID.
type EntityID string

// Record is a read-only snapshot of an entity's heartbeat state.
type Record struct {
	// ID is the entity identifier.
	ID EntityID `json:"id"`

	// State is the last liveness verdict stored for the entity.
	State LivenessState `json:"state"`

	// LastSeen is the newest heartbeat timestamp, or the registration time
	// when the entity never sent a heartbeat.
	LastSeen Timestamp `json:"lastSeen"`

	// RegisteredAt is the time the record was created.
	RegisteredAt Timestamp `json:"registeredAt"`

	// LastTransition is the time of the most recent state change
	// (equal to RegisteredAt until the first transition).
	LastTransition Timestamp `json:"lastTransition"`

	// Heartbeats counts accepted (non-stale) heartbeats.
	Heartbeats uint64 `json:"heartbeats"`

	// SuspicionScore is the score computed by the last sweep.
	// For the accrual policy this is phi; for fixed-timeout it is the elapsed
	// time as a multiple of SuspectAfter.
	SuspicionScore float64 `json:"suspicionScore"`

	// Samples is the number of inter-arrival samples currently held in the
	// accrual window.
	Samples int `json:"samples"`
}

// Event describes a liveness transition of a single entity.
type Event struct {
	EntityID EntityID      `json:"entityId"`
	From     LivenessState `json:"from"`
	To       LivenessState `json:"to"`
	At       Timestamp     `json:"at"`
	Score    float64       `json:"score"`
}

// SubscriptionID identifies a registered subscriber.
type SubscriptionID uint64

// Subscriber receives liveness transition events.
//
// Notify is called from dispatcher goroutines. Events for the same entity
// arrive in the order the transitions happened; there is no ordering across
// entities. A returned error (or panic) is reported and isolated: it never
// stops the sweep or delivery to other subscribers.
type Subscriber interface {
	Notify(ctx context.Context, ev Event) error
}

// SubscriberFunc adapts an ordinary function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, ev Event) error

// Notify calls f(ctx, ev).
func (f SubscriberFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
