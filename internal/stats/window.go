// Package stats provides the bounded sample window used by the accrual detector.
package stats

import (
	"math"
	"time"
)

// Window is a fixed-capacity sliding window of inter-heartbeat intervals.
//
// When full, adding a sample evicts the oldest one. Mean and variance are
// maintained incrementally from running sums so reads are O(1).
//
// Window is not safe for concurrent use; the registry guards each window
// with its entry lock.
type Window struct {
	samples []float64 // milliseconds
	head    int
	size    int
	sum     float64
	sumSq   float64
}

// NewWindow creates a window holding at most capacity samples.
//
// Parameters:
//   - capacity: Maximum samples retained (values < 1 are treated as 1)
//
// Returns:
//   - *Window: Empty window
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}

	return &Window{samples: make([]float64, capacity)}
}

// Add records an interval, evicting the oldest sample when the window is full.
func (w *Window) Add(interval time.Duration) {
	ms := float64(interval) / float64(time.Millisecond)

	if w.size == len(w.samples) {
		old := w.samples[w.head]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.size++
	}

	w.samples[w.head] = ms
	w.sum += ms
	w.sumSq += ms * ms
	w.head = (w.head + 1) % len(w.samples)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.samples)
}

// Mean returns the sample mean in milliseconds, or 0 for an empty window.
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}

	return w.sum / float64(w.size)
}

// Variance returns the population variance in milliseconds squared.
func (w *Window) Variance() float64 {
	if w.size == 0 {
		return 0
	}
	mean := w.Mean()
	v := w.sumSq/float64(w.size) - mean*mean
	if v < 0 {
		// float cancellation on near-constant samples
		return 0
	}

	return v
}

// StdDev returns the population standard deviation in milliseconds.
func (w *Window) StdDev() float64 {
	return math.Sqrt(w.Variance())
}

// Samples returns the held samples from oldest to newest, in milliseconds.
func (w *Window) Samples() []float64 {
	out := make([]float64, 0, w.size)
	start := (w.head - w.size + len(w.samples)) % len(w.samples)
	for i := range w.size {
		out = append(out, w.samples[(start+i)%len(w.samples)])
	}

	return out
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.head = 0
	w.size = 0
	w.sum = 0
	w.sumSq = 0
}
