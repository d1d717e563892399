package detector

import (
	"github.com/arloliu/heartbeat/internal/stats"
	"github.com/arloliu/heartbeat/types"
)

// View is the slice of an entity's record a detector needs.
//
// Intervals may be nil for policies that do not use them.
type View struct {
	LastSeen   types.Timestamp
	Heartbeats uint64
	Intervals  *stats.Window
}

// Verdict is the result of evaluating one entity.
type Verdict struct {
	State types.LivenessState
	Score float64
}

// Detector computes a liveness verdict from heartbeat history and elapsed time.
//
// Implementations must be pure with respect to the view: they must not
// retain or mutate it, and must be safe for concurrent use.
type Detector interface {
	// Evaluate returns the verdict for an entity at time now.
	Evaluate(v View, now types.Timestamp) Verdict

	// Policy returns the policy implemented by the detector.
	Policy() types.Policy
}

// Path returns the ordered states a record moves through to get from its
// stored state to the computed verdict.
//
// The result is empty when no transition is due. Without hardDeadline an
// Alive entity judged Dead steps through Suspect, yielding two states. A
// Dead entity judged Suspect stays Dead: only a fresh heartbeat, making the
// verdict Alive, brings it back.
//
// Parameters:
//   - from: Stored state
//   - to: Computed verdict
//   - hardDeadline: Whether Alive → Dead may be taken directly
//
// Returns:
//   - []types.LivenessState: States to enter, in order
func Path(from, to types.LivenessState, hardDeadline bool) []types.LivenessState {
	if from == to {
		return nil
	}
	if types.CanTransition(from, to, hardDeadline) {
		return []types.LivenessState{to}
	}
	if from == types.StateAlive && to == types.StateDead {
		return []types.LivenessState{types.StateSuspect, types.StateDead}
	}

	return nil
}
