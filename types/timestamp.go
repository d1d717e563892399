package types

import "time"

// Timestamp is a point on a monotonic timeline, in nanoseconds.
//
// Timestamps are produced by a Clock and are only comparable with other
// timestamps from the same clock. They never follow wall-clock adjustments.
type Timestamp int64

// Add returns the timestamp t+d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d)
}

// Sub returns the duration t-u.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t - u)
}

// Before reports whether t is before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t < u
}

// After reports whether t is after u.
func (t Timestamp) After(u Timestamp) bool {
	return t > u
}

// Duration returns t as an offset from the clock origin.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t)
}

// String formats t as its offset from the clock origin.
func (t Timestamp) String() string {
	return "+" + time.Duration(t).String()
}
