package clock

import (
	"sync"
	"time"

	"github.com/arloliu/heartbeat/types"
)

// Real is a Clock backed by the runtime monotonic clock.
//
// Now is measured from the moment the clock was created, so timestamps are
// immune to wall-clock adjustments.
type Real struct {
	origin time.Time
}

// Compile-time assertion that Real implements Clock.
var _ types.Clock = (*Real)(nil)

// New creates a real clock whose origin is the current instant.
//
// Returns:
//   - *Real: Clock instance
func New() *Real {
	return &Real{origin: time.Now()}
}

// Now returns the monotonic time elapsed since the clock origin.
func (c *Real) Now() types.Timestamp {
	return types.Timestamp(time.Since(c.origin))
}

// SchedulePeriodic runs fn every interval on a dedicated goroutine.
//
// Invocations are sequential: a slow fn delays the next tick rather than
// overlapping with it. The returned handle's Cancel blocks until the
// goroutine has exited, so no invocation starts or runs after Cancel returns.
// Cancel must not be called from inside fn.
//
// Parameters:
//   - interval: Time between invocations (must be > 0)
//   - fn: Callback to invoke
//
// Returns:
//   - types.CancelHandle: Handle to stop the schedule
func (c *Real) SchedulePeriodic(interval time.Duration, fn func()) types.CancelHandle {
	h := &tickerHandle{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(h.doneCh)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				// Prefer stop over a tick that raced with Cancel.
				select {
				case <-h.stopCh:
					return
				default:
				}
				fn()
			}
		}
	}()

	return h
}

type tickerHandle struct {
	once   sync.Once
	stopCh chan struct{}
	doneCh chan struct{}
}

// Cancel stops the ticker goroutine and waits for it to exit.
func (h *tickerHandle) Cancel() {
	h.once.Do(func() {
		close(h.stopCh)
	})
	<-h.doneCh
}
