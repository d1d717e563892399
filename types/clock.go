package types

import "time"

// Clock supplies monotonic timestamps and periodic scheduling.
type Clock interface {
	// Now returns the current monotonic timestamp. Successive calls never decrease.
	Now() Timestamp

	// SchedulePeriodic invokes fn every interval until the returned handle is cancelled.
	SchedulePeriodic(interval time.Duration, fn func()) CancelHandle
}

// CancelHandle stops a periodic schedule.
type CancelHandle interface {
	// Cancel stops future invocations. Calling Cancel more than once is a no-op.
	Cancel()
}
