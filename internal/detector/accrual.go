package detector

import (
	"math"
	"time"

	"github.com/arloliu/heartbeat/types"
)

// maxPhi caps the score once the tail probability underflows.
const maxPhi = 1e3

// Accrual is a phi accrual failure detector.
//
// phi = -log10(P(next heartbeat arrives later than elapsed)), where the
// inter-arrival time is modeled as a normal distribution with the window's
// mean (plus AcceptablePause) and standard deviation (floored at
// MinStdDev). The CDF uses the logistic approximation
//
//	F(y) ≈ 1 / (1 + exp(-y * (1.5976 + 0.070566 * y²)))
//
// An entity with no samples is judged against FirstHeartbeatEstimate with a
// standard deviation of a quarter of the estimate, so an entity that never
// sends a heartbeat still accrues suspicion from its registration time.
type Accrual struct {
	SuspectThreshold       float64
	DeadThreshold          float64
	MinStdDev              time.Duration
	AcceptablePause        time.Duration
	FirstHeartbeatEstimate time.Duration
}

// Compile-time assertion that Accrual implements Detector.
var _ Detector = Accrual{}

// Evaluate implements Detector.
func (d Accrual) Evaluate(v View, now types.Timestamp) Verdict {
	elapsed := now.Sub(v.LastSeen)
	if elapsed < 0 {
		elapsed = 0
	}

	mean, stdDev := d.distribution(v)
	phi := Phi(toMillis(elapsed), mean+toMillis(d.AcceptablePause), stdDev)

	switch {
	case phi >= d.DeadThreshold:
		return Verdict{State: types.StateDead, Score: phi}
	case phi >= d.SuspectThreshold:
		return Verdict{State: types.StateSuspect, Score: phi}
	default:
		return Verdict{State: types.StateAlive, Score: phi}
	}
}

// Policy implements Detector.
func (d Accrual) Policy() types.Policy {
	return types.PolicyAccrual
}

// distribution returns the mean and floored standard deviation in milliseconds.
func (d Accrual) distribution(v View) (float64, float64) {
	var mean, stdDev float64
	if v.Intervals == nil || v.Intervals.Len() == 0 {
		mean = toMillis(d.FirstHeartbeatEstimate)
		stdDev = mean / 4
	} else {
		mean = v.Intervals.Mean()
		stdDev = v.Intervals.StdDev()
	}

	if floor := toMillis(d.MinStdDev); stdDev < floor {
		stdDev = floor
	}

	return mean, stdDev
}

// Phi returns the suspicion level for an elapsed time given the interval
// distribution, all in the same unit.
//
// Phi is 0 for a non-positive standard deviation combined with an elapsed
// time within the mean, and grows without practical bound (capped at 1000)
// as elapsed moves past the mean.
func Phi(elapsed, mean, stdDev float64) float64 {
	if stdDev <= 0 {
		if elapsed <= mean {
			return 0
		}

		return maxPhi
	}

	y := (elapsed - mean) / stdDev
	e := math.Exp(-y * (1.5976 + 0.070566*y*y))

	var p float64
	if elapsed > mean {
		p = e / (1.0 + e)
	} else {
		p = 1.0 - 1.0/(1.0+e)
	}

	if p <= 0 {
		return maxPhi
	}
	phi := -math.Log10(p)
	if phi > maxPhi || math.IsInf(phi, 1) || math.IsNaN(phi) {
		return maxPhi
	}
	if phi <= 0 {
		return 0
	}

	return phi
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
