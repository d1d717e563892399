package types

import (
	"fmt"
	"strings"
)

// LivenessState represents the liveness verdict for a monitored entity.
//
// States follow a defined progression:
//
//	StateAlive → StateSuspect → StateDead
//
// Recovery and rejoin move an entity back to Alive:
//
//	StateSuspect → StateAlive
//	StateDead → StateAlive
//
// A direct StateAlive → StateDead transition only happens when the
// coordinator runs with a hard-deadline policy.
type LivenessState int

const (
	// StateAlive indicates the entity has sent heartbeats recently enough.
	StateAlive LivenessState = iota

	// StateSuspect indicates heartbeats are overdue but the entity is not yet declared failed.
	StateSuspect

	// StateDead indicates the entity is considered failed.
	StateDead
)

// String returns the string representation of the state.
func (s LivenessState) String() string {
	switch s {
	case StateAlive:
		return "Alive"
	case StateSuspect:
		return "Suspect"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the defined liveness states.
func (s LivenessState) Valid() bool {
	return s >= StateAlive && s <= StateDead
}

// MarshalText implements encoding.TextMarshaler.
func (s LivenessState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown liveness state %d", int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// Accepts the names returned by String in any letter case.
func (s *LivenessState) UnmarshalText(text []byte) error {
	name := string(text)
	for _, state := range []LivenessState{StateAlive, StateSuspect, StateDead} {
		if strings.EqualFold(name, state.String()) {
			*s = state
			return nil
		}
	}

	return fmt.Errorf("unknown liveness state %q", name)
}

// CanTransition reports whether from → to is a legal transition.
//
// Parameters:
//   - from: Current state
//   - to: Target state
//   - hardDeadline: Whether Alive → Dead is permitted
//
// Returns:
//   - bool: true if the transition is allowed
func CanTransition(from, to LivenessState, hardDeadline bool) bool {
	switch {
	case from == StateAlive && to == StateSuspect:
		return true
	case from == StateSuspect && to == StateDead:
		return true
	case from == StateSuspect && to == StateAlive:
		return true
	case from == StateDead && to == StateAlive:
		return true
	case from == StateAlive && to == StateDead:
		return hardDeadline
	default:
		return false
	}
}
