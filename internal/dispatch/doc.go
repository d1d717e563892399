// Package dispatch delivers liveness events to subscribers.
//
// Publishing never blocks the caller. Events are queued on one of several
// lanes chosen by hashing the entity ID, so events for one entity are
// delivered in publish order while different entities fan out in parallel.
// A failing or panicking subscriber is isolated: the failure is reported
// and every other subscriber still receives the event.
package dispatch
