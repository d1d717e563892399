package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/arloliu/heartbeat/types"
)

// Manual is a Clock that only moves when told to.
//
// Periodic callbacks fire synchronously inside Advance and Set, in time
// order, with Now reporting each callback's scheduled instant while it runs.
// Callbacks must not call Advance or Set themselves.
type Manual struct {
	mu       sync.Mutex
	advMu    sync.Mutex // serializes Advance/Set
	now      types.Timestamp
	nextID   uint64
	periodic map[uint64]*manualSchedule
}

type manualSchedule struct {
	id       uint64
	interval time.Duration
	next     types.Timestamp
	fn       func()
}

// Compile-time assertion that Manual implements Clock.
var _ types.Clock = (*Manual)(nil)

// NewManual creates a manual clock positioned at start.
//
// Parameters:
//   - start: Initial timestamp
//
// Returns:
//   - *Manual: Clock instance
func NewManual(start types.Timestamp) *Manual {
	return &Manual{
		now:      start,
		periodic: make(map[uint64]*manualSchedule),
	}
}

// Now returns the current manual time.
func (c *Manual) Now() types.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// SchedulePeriodic registers fn to run every interval of manual time.
// The first invocation is due at Now()+interval.
func (c *Manual) SchedulePeriodic(interval time.Duration, fn func()) types.CancelHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	s := &manualSchedule{
		id:       c.nextID,
		interval: interval,
		next:     c.now.Add(interval),
		fn:       fn,
	}
	c.periodic[s.id] = s

	return &manualHandle{clock: c, id: s.id}
}

// Advance moves the clock forward by d, firing every callback that becomes due.
// Non-positive durations are ignored.
func (c *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.Set(c.Now().Add(d))
}

// Set moves the clock to target, firing every callback due at or before it.
// Targets in the past are ignored: manual time never goes backward.
func (c *Manual) Set(target types.Timestamp) {
	c.advMu.Lock()
	defer c.advMu.Unlock()

	for {
		c.mu.Lock()
		if target < c.now {
			c.mu.Unlock()
			return
		}
		due := c.nextDueLocked(target)
		if due == nil {
			c.now = target
			c.mu.Unlock()

			return
		}
		c.now = due.next
		due.next = due.next.Add(due.interval)
		fn := due.fn
		c.mu.Unlock()

		fn()
	}
}

// Pending returns the number of active periodic schedules.
func (c *Manual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.periodic)
}

// nextDueLocked returns the earliest schedule due at or before target, or nil.
// Ties are broken by registration order.
func (c *Manual) nextDueLocked(target types.Timestamp) *manualSchedule {
	candidates := make([]*manualSchedule, 0, len(c.periodic))
	for _, s := range c.periodic {
		if s.next <= target {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].next != candidates[j].next {
			return candidates[i].next < candidates[j].next
		}

		return candidates[i].id < candidates[j].id
	})

	return candidates[0]
}

type manualHandle struct {
	clock *Manual
	id    uint64
}

// Cancel removes the schedule. Safe to call repeatedly.
func (h *manualHandle) Cancel() {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()

	delete(h.clock.periodic, h.id)
}
