// Package registry stores per-entity heartbeat records.
//
// Records live in a sharded concurrent map and each record carries its own
// mutex, so a heartbeat for one entity never waits on activity for another.
// The sweep and heartbeat intake serialize only on the single record they
// touch.
package registry

import (
	"fmt"
	"iter"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/heartbeat/internal/stats"
	"github.com/arloliu/heartbeat/types"
)

// Entry is the mutable state of one registered entity.
//
// Entries are only handed out under their lock (see Update); callers must
// not retain them after the callback returns.
type Entry struct {
	Record    types.Record
	Intervals *stats.Window

	mu      sync.Mutex
	removed bool
}

// Outcome describes the effect of RecordHeartbeat.
type Outcome struct {
	// Applied is true when LastSeen advanced.
	Applied bool

	// Created is true when the heartbeat auto-registered the entity.
	Created bool

	// Stale is true when the timestamp was not newer than LastSeen.
	Stale bool
}

// Registry maps entity IDs to heartbeat records.
type Registry struct {
	entries    *xsync.Map[types.EntityID, *Entry]
	windowSize int
}

// New creates an empty registry.
//
// Parameters:
//   - windowSize: Capacity of each entity's interval window (0 disables sample tracking)
//
// Returns:
//   - *Registry: Empty registry
func New(windowSize int) *Registry {
	return &Registry{
		entries:    xsync.NewMap[types.EntityID, *Entry](),
		windowSize: windowSize,
	}
}

func (r *Registry) newEntry(id types.EntityID, state types.LivenessState, now types.Timestamp) *Entry {
	e := &Entry{
		Record: types.Record{
			ID:             id,
			State:          state,
			LastSeen:       now,
			RegisteredAt:   now,
			LastTransition: now,
		},
	}
	if r.windowSize > 0 {
		e.Intervals = stats.NewWindow(r.windowSize)
	}

	return e
}

// Register creates a record for id.
//
// The registration time doubles as the LastSeen baseline, so an entity that
// never sends a heartbeat is judged from the moment it was registered.
//
// Parameters:
//   - id: Entity identifier
//   - state: Initial liveness state
//   - now: Registration time
//
// Returns:
//   - error: ErrInvalidEntityID, ErrInvalidState or ErrAlreadyRegistered
func (r *Registry) Register(id types.EntityID, state types.LivenessState, now types.Timestamp) error {
	if id == "" {
		return types.ErrInvalidEntityID
	}
	if !state.Valid() {
		return fmt.Errorf("register %q: %w: %d", id, types.ErrInvalidState, int(state))
	}

	if _, loaded := r.entries.LoadOrStore(id, r.newEntry(id, state, now)); loaded {
		return fmt.Errorf("register %q: %w", id, types.ErrAlreadyRegistered)
	}

	return nil
}

// Deregister removes the record for id.
//
// Returns:
//   - types.Record: Final snapshot of the removed record
//   - error: ErrNotFound if id is not registered
func (r *Registry) Deregister(id types.EntityID) (types.Record, error) {
	e, ok := r.entries.Load(id)
	if !ok {
		return types.Record{}, fmt.Errorf("deregister %q: %w", id, types.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return types.Record{}, fmt.Errorf("deregister %q: %w", id, types.ErrNotFound)
	}
	e.removed = true
	// Delete while holding the entry lock: anyone who later observes
	// removed also observes the key gone.
	r.entries.Delete(id)

	return e.snapshot(), nil
}

// RecordHeartbeat applies a heartbeat for id observed at ts.
//
// LastSeen becomes max(LastSeen, ts). Timestamps not newer than LastSeen are
// ignored and reported as stale. A fresh heartbeat following an earlier one
// adds the gap between them to the entity's interval window.
//
// Parameters:
//   - id: Entity identifier
//   - ts: Heartbeat arrival time
//   - autoRegister: Create the record if id is unknown
//
// Returns:
//   - Outcome: What the heartbeat changed
//   - error: ErrInvalidEntityID, or ErrNotFound when id is unknown and autoRegister is false
func (r *Registry) RecordHeartbeat(id types.EntityID, ts types.Timestamp, autoRegister bool) (Outcome, error) {
	if id == "" {
		return Outcome{}, types.ErrInvalidEntityID
	}

	for {
		e, ok := r.entries.Load(id)
		if !ok {
			if !autoRegister {
				return Outcome{}, fmt.Errorf("heartbeat %q: %w", id, types.ErrNotFound)
			}
			created := r.newEntry(id, types.StateAlive, ts)
			created.Record.Heartbeats = 1
			if _, loaded := r.entries.LoadOrStore(id, created); !loaded {
				return Outcome{Applied: true, Created: true}, nil
			}
			// Lost the race to another registration; apply to theirs.
			continue
		}

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		out := e.apply(ts)
		e.mu.Unlock()

		return out, nil
	}
}

// apply must be called with e.mu held.
func (e *Entry) apply(ts types.Timestamp) Outcome {
	rec := &e.Record

	if ts < rec.LastSeen || (ts == rec.LastSeen && rec.Heartbeats > 0) {
		return Outcome{Stale: true}
	}

	if rec.Heartbeats > 0 && e.Intervals != nil {
		e.Intervals.Add(ts.Sub(rec.LastSeen))
	}
	rec.LastSeen = ts
	rec.Heartbeats++

	return Outcome{Applied: true}
}

// Get returns a snapshot of the record for id.
//
// Returns:
//   - types.Record: Snapshot (safe to retain)
//   - error: ErrNotFound if id is not registered
func (r *Registry) Get(id types.EntityID) (types.Record, error) {
	e, ok := r.entries.Load(id)
	if !ok {
		return types.Record{}, fmt.Errorf("get %q: %w", id, types.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return types.Record{}, fmt.Errorf("get %q: %w", id, types.ErrNotFound)
	}

	return e.snapshot(), nil
}

// snapshot must be called with e.mu held.
func (e *Entry) snapshot() types.Record {
	rec := e.Record
	if e.Intervals != nil {
		rec.Samples = e.Intervals.Len()
	}

	return rec
}

// Update runs fn on the entry for id while holding its lock.
//
// Returns:
//   - bool: false if id is not registered (fn is not called)
func (r *Registry) Update(id types.EntityID, fn func(e *Entry)) bool {
	e, ok := r.entries.Load(id)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return false
	}
	fn(e)

	return true
}

// IDs returns a lazy sequence of registered entity IDs.
//
// Iteration order is unspecified. The sequence may be ranged over any number
// of times; entities registered or removed during iteration may or may not
// be observed.
func (r *Registry) IDs() iter.Seq[types.EntityID] {
	return func(yield func(types.EntityID) bool) {
		r.entries.Range(func(id types.EntityID, _ *Entry) bool {
			return yield(id)
		})
	}
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return r.entries.Size()
}

// CountByState returns how many registered entities are in each state.
func (r *Registry) CountByState() map[types.LivenessState]int {
	counts := map[types.LivenessState]int{
		types.StateAlive:   0,
		types.StateSuspect: 0,
		types.StateDead:    0,
	}
	r.entries.Range(func(_ types.EntityID, e *Entry) bool {
		e.mu.Lock()
		if !e.removed {
			counts[e.Record.State]++
		}
		e.mu.Unlock()

		return true
	})

	return counts
}
