package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the heartbeat library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap them with context using fmt.Errorf("%s: %w", msg, err).

// Coordinator errors - Public API errors returned by the Coordinator.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrNotStarted is returned when operations require a started coordinator.
	ErrNotStarted = errors.New("coordinator not started")

	// ErrStopped is returned when mutating a coordinator after Stop.
	ErrStopped = errors.New("coordinator stopped")
)

// Registry errors - Entity lookup and registration errors.
var (
	// ErrNotFound is returned when an operation targets an unregistered entity.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyRegistered is returned when registering an ID that already exists.
	ErrAlreadyRegistered = errors.New("entity already registered")

	// ErrInvalidEntityID is returned for an empty entity ID.
	ErrInvalidEntityID = errors.New("invalid entity ID")

	// ErrInvalidState is returned when registering with an undefined liveness state.
	ErrInvalidState = errors.New("invalid liveness state")
)

// Dispatcher errors - Subscriber delivery errors.
var (
	// ErrSubscriberFailure is matched by every error a subscriber returns or panics with.
	ErrSubscriberFailure = errors.New("subscriber failure")

	// ErrSubscriberBackpressure is returned by channel subscribers whose buffer is full.
	ErrSubscriberBackpressure = errors.New("subscriber channel full")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrDispatcherStopped is returned when subscribing to a stopped dispatcher.
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

// SubscriberError reports a failed delivery to one subscriber.
//
// It matches both ErrSubscriberFailure and the underlying cause with errors.Is.
type SubscriberError struct {
	Subscription SubscriptionID
	Event        Event
	Err          error
}

// Error implements the error interface.
func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %d failed on %s %s->%s: %v",
		e.Subscription, e.Event.EntityID, e.Event.From, e.Event.To, e.Err)
}

// Unwrap returns ErrSubscriberFailure and the cause.
func (e *SubscriberError) Unwrap() []error {
	return []error{ErrSubscriberFailure, e.Err}
}
