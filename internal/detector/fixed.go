package detector

import (
	"time"

	"github.com/arloliu/heartbeat/types"
)

// FixedTimeout judges entities by fixed cutoffs on the time since LastSeen.
//
//	elapsed >= DeadAfter    → Dead
//	elapsed >= SuspectAfter → Suspect
//	otherwise               → Alive
//
// The score is elapsed expressed as a multiple of SuspectAfter.
type FixedTimeout struct {
	SuspectAfter time.Duration
	DeadAfter    time.Duration
}

// Compile-time assertion that FixedTimeout implements Detector.
var _ Detector = FixedTimeout{}

// NewFixedTimeout creates a fixed-timeout detector.
func NewFixedTimeout(suspectAfter, deadAfter time.Duration) FixedTimeout {
	return FixedTimeout{SuspectAfter: suspectAfter, DeadAfter: deadAfter}
}

// Evaluate implements Detector.
func (d FixedTimeout) Evaluate(v View, now types.Timestamp) Verdict {
	elapsed := now.Sub(v.LastSeen)
	if elapsed < 0 {
		elapsed = 0
	}

	var score float64
	if d.SuspectAfter > 0 {
		score = float64(elapsed) / float64(d.SuspectAfter)
	}

	switch {
	case elapsed >= d.DeadAfter:
		return Verdict{State: types.StateDead, Score: score}
	case elapsed >= d.SuspectAfter:
		return Verdict{State: types.StateSuspect, Score: score}
	default:
		return Verdict{State: types.StateAlive, Score: score}
	}
}

// Policy implements Detector.
func (d FixedTimeout) Policy() types.Policy {
	return types.PolicyFixedTimeout
}
