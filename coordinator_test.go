package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/heartbeat/clock"
	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/internal/metrics"
)

// manualConfig disables periodic sweeping in practice so tests drive sweeps explicitly.
func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour

	return cfg
}

func at(d time.Duration) Timestamp {
	return Timestamp(d)
}

type harness struct {
	coord  *Coordinator
	clock  *clock.Manual
	events <-chan Event
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()

	clk := clock.NewManual(0)
	opts = append([]Option{WithClock(clk), WithLogger(logging.NewTest(t))}, opts...)
	coord := New(opts...)
	require.NoError(t, coord.Start(t.Context(), &cfg))
	t.Cleanup(func() {
		_ = coord.Stop(context.Background())
	})

	events, _, err := coord.SubscribeChan(1024)
	require.NoError(t, err)

	return &harness{coord: coord, clock: clk, events: events}
}

// sweepAt moves the clock to ts and runs a sweep.
func (h *harness) sweepAt(t *testing.T, ts Timestamp) SweepStats {
	t.Helper()
	h.clock.Set(ts)
	stats, err := h.coord.Sweep(t.Context())
	require.NoError(t, err)

	return stats
}

func (h *harness) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (h *harness) requireNoEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) requireState(t *testing.T, id EntityID, want LivenessState) {
	t.Helper()
	got, err := h.coord.CurrentState(id)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCoordinator_RoundTrip(t *testing.T) {
	h := newHarness(t, manualConfig())
	t0 := at(10 * time.Second)

	require.NoError(t, h.coord.Register("E"))
	require.NoError(t, h.coord.HeartbeatAt("E", t0))

	h.sweepAt(t, t0.Add(5*time.Second-time.Millisecond))
	h.requireState(t, "E", StateAlive)
	h.requireNoEvent(t)

	h.sweepAt(t, t0.Add(5*time.Second+time.Millisecond))
	h.requireState(t, "E", StateSuspect)
	ev := h.nextEvent(t)
	require.Equal(t, EntityID("E"), ev.EntityID)
	require.Equal(t, StateAlive, ev.From)
	require.Equal(t, StateSuspect, ev.To)
	require.Equal(t, t0.Add(5*time.Second+time.Millisecond), ev.At)

	h.sweepAt(t, t0.Add(15*time.Second+time.Millisecond))
	h.requireState(t, "E", StateDead)
	ev = h.nextEvent(t)
	require.Equal(t, StateSuspect, ev.From)
	require.Equal(t, StateDead, ev.To)

	rec, err := h.coord.Record("E")
	require.NoError(t, err)
	require.Equal(t, t0, rec.LastSeen)
	require.Equal(t, uint64(1), rec.Heartbeats)
	require.Equal(t, t0.Add(15*time.Second+time.Millisecond), rec.LastTransition)
	require.Greater(t, rec.SuspicionScore, 3.0)
}

func TestCoordinator_ExampleScenario(t *testing.T) {
	// suspect after 5s, dead after 15s, heartbeats at t=0,2,4 then silence.
	h := newHarness(t, manualConfig())

	require.NoError(t, h.coord.Register("node"))
	for _, s := range []int{0, 2, 4} {
		h.clock.Set(at(time.Duration(s) * time.Second))
		require.NoError(t, h.coord.Heartbeat("node"))
	}

	h.sweepAt(t, at(8*time.Second))
	h.requireState(t, "node", StateAlive)

	h.sweepAt(t, at(10*time.Second))
	h.requireState(t, "node", StateSuspect)
	require.Equal(t, StateSuspect, h.nextEvent(t).To)

	h.sweepAt(t, at(18*time.Second))
	h.requireState(t, "node", StateSuspect)
	h.requireNoEvent(t)

	h.sweepAt(t, at(20*time.Second))
	h.requireState(t, "node", StateDead)
	require.Equal(t, StateDead, h.nextEvent(t).To)
}

func TestCoordinator_NeverHeartbeated(t *testing.T) {
	h := newHarness(t, manualConfig())

	// Registered at t=0 and silent from then on.
	require.NoError(t, h.coord.Register("quiet"))

	h.sweepAt(t, at(4*time.Second))
	h.requireState(t, "quiet", StateAlive)
	h.requireNoEvent(t)

	h.sweepAt(t, at(6*time.Second))
	h.requireState(t, "quiet", StateSuspect)
	ev := h.nextEvent(t)
	require.Equal(t, EntityID("quiet"), ev.EntityID)
	require.Equal(t, StateAlive, ev.From)
	require.Equal(t, StateSuspect, ev.To)
	require.Equal(t, at(6*time.Second), ev.At)
	h.requireNoEvent(t)

	h.sweepAt(t, at(16*time.Second))
	h.requireState(t, "quiet", StateDead)
	ev = h.nextEvent(t)
	require.Equal(t, EntityID("quiet"), ev.EntityID)
	require.Equal(t, StateSuspect, ev.From)
	require.Equal(t, StateDead, ev.To)
	require.Equal(t, at(16*time.Second), ev.At)
	h.requireNoEvent(t)

	rec, err := h.coord.Record("quiet")
	require.NoError(t, err)
	require.Zero(t, rec.Heartbeats)
	require.Equal(t, at(0), rec.LastSeen)
}

func TestCoordinator_StateCounts(t *testing.T) {
	h := newHarness(t, manualConfig())

	require.NoError(t, h.coord.Register("a"))
	require.NoError(t, h.coord.Register("b"))
	require.NoError(t, h.coord.Register("c"))

	counts, err := h.coord.StateCounts()
	require.NoError(t, err)
	require.Equal(t, map[LivenessState]int{StateAlive: 3, StateSuspect: 0, StateDead: 0}, counts)

	require.NoError(t, h.coord.HeartbeatAt("a", at(15*time.Second)))
	require.NoError(t, h.coord.HeartbeatAt("b", at(3*time.Second)))
	require.NoError(t, h.coord.HeartbeatAt("c", at(10*time.Second)))
	// a silent 4s, c silent 9s, b silent 16s.
	h.sweepAt(t, at(19*time.Second))
	h.requireState(t, "a", StateAlive)
	h.requireState(t, "c", StateSuspect)
	h.requireState(t, "b", StateDead)

	counts, err = h.coord.StateCounts()
	require.NoError(t, err)
	require.Equal(t, map[LivenessState]int{StateAlive: 1, StateSuspect: 1, StateDead: 1}, counts)

	require.NoError(t, h.coord.Stop(t.Context()))

	// Stored states stay readable after Stop.
	counts, err = h.coord.StateCounts()
	require.NoError(t, err)
	require.Equal(t, map[LivenessState]int{StateAlive: 1, StateSuspect: 1, StateDead: 1}, counts)

	_, err = New().StateCounts()
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestCoordinator_SteppedDeath(t *testing.T) {
	t.Run("steps through suspect without hard deadline", func(t *testing.T) {
		h := newHarness(t, manualConfig())

		require.NoError(t, h.coord.Register("E"))
		stats := h.sweepAt(t, at(30*time.Second))
		require.Equal(t, 2, stats.Transitions)

		first, second := h.nextEvent(t), h.nextEvent(t)
		require.Equal(t, StateAlive, first.From)
		require.Equal(t, StateSuspect, first.To)
		require.Equal(t, StateSuspect, second.From)
		require.Equal(t, StateDead, second.To)
		h.requireState(t, "E", StateDead)
	})

	t.Run("jumps directly with hard deadline", func(t *testing.T) {
		cfg := manualConfig()
		cfg.HardDeadline = true
		h := newHarness(t, cfg)

		require.NoError(t, h.coord.Register("E"))
		stats := h.sweepAt(t, at(30*time.Second))
		require.Equal(t, 1, stats.Transitions)

		ev := h.nextEvent(t)
		require.Equal(t, StateAlive, ev.From)
		require.Equal(t, StateDead, ev.To)
		h.requireNoEvent(t)
	})
}

func TestCoordinator_Recovery(t *testing.T) {
	t.Run("suspect to alive", func(t *testing.T) {
		h := newHarness(t, manualConfig())
		require.NoError(t, h.coord.Register("E"))

		h.sweepAt(t, at(6*time.Second))
		require.Equal(t, StateSuspect, h.nextEvent(t).To)

		require.NoError(t, h.coord.Heartbeat("E"))
		// Heartbeats never change state by themselves.
		h.requireState(t, "E", StateSuspect)

		h.sweepAt(t, at(7*time.Second))
		ev := h.nextEvent(t)
		require.Equal(t, StateSuspect, ev.From)
		require.Equal(t, StateAlive, ev.To)
		h.requireState(t, "E", StateAlive)
	})

	t.Run("dead to alive", func(t *testing.T) {
		h := newHarness(t, manualConfig())
		require.NoError(t, h.coord.Register("E"))

		h.sweepAt(t, at(20*time.Second))
		h.nextEvent(t)
		h.nextEvent(t)
		h.requireState(t, "E", StateDead)

		require.NoError(t, h.coord.Heartbeat("E"))
		h.sweepAt(t, at(21*time.Second))

		ev := h.nextEvent(t)
		require.Equal(t, StateDead, ev.From)
		require.Equal(t, StateAlive, ev.To)
	})

	t.Run("dead never returns to suspect", func(t *testing.T) {
		h := newHarness(t, manualConfig())
		require.NoError(t, h.coord.RegisterWithState("E", StateDead))

		// Heartbeat then let it go overdue but not dead.
		h.clock.Set(at(time.Second))
		require.NoError(t, h.coord.Heartbeat("E"))
		h.sweepAt(t, at(7*time.Second))

		h.requireState(t, "E", StateDead)
		h.requireNoEvent(t)
	})
}

func TestCoordinator_Idempotence(t *testing.T) {
	h := newHarness(t, manualConfig())
	require.NoError(t, h.coord.Register("E"))

	require.NoError(t, h.coord.HeartbeatAt("E", at(10*time.Second)))
	require.NoError(t, h.coord.HeartbeatAt("E", at(3*time.Second)))
	require.NoError(t, h.coord.HeartbeatAt("E", at(10*time.Second)))

	rec, err := h.coord.Record("E")
	require.NoError(t, err)
	require.Equal(t, at(10*time.Second), rec.LastSeen)
	require.Equal(t, uint64(1), rec.Heartbeats)

	// Repeated sweeps at the same verdict emit nothing new.
	h.sweepAt(t, at(16*time.Second))
	require.Equal(t, StateSuspect, h.nextEvent(t).To)
	for i := range 5 {
		h.sweepAt(t, at(16*time.Second+time.Duration(i)*time.Millisecond))
	}
	h.requireNoEvent(t)
}

func TestCoordinator_AutoRegister(t *testing.T) {
	t.Run("rejects unknown entity by default", func(t *testing.T) {
		h := newHarness(t, manualConfig())

		err := h.coord.Heartbeat("ghost")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = h.coord.CurrentState("ghost")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("registers unknown entity when enabled", func(t *testing.T) {
		cfg := manualConfig()
		cfg.AutoRegister = true
		h := newHarness(t, cfg)

		h.clock.Set(at(time.Second))
		require.NoError(t, h.coord.Heartbeat("new"))

		rec, err := h.coord.Record("new")
		require.NoError(t, err)
		require.Equal(t, StateAlive, rec.State)
		require.Equal(t, at(time.Second), rec.LastSeen)
		require.Equal(t, uint64(1), rec.Heartbeats)
	})
}

func TestCoordinator_RegisterDeregister(t *testing.T) {
	h := newHarness(t, manualConfig())

	require.NoError(t, h.coord.Register("a"))
	require.ErrorIs(t, h.coord.Register("a"), ErrAlreadyRegistered)
	require.ErrorIs(t, h.coord.Register(""), ErrInvalidEntityID)
	require.ErrorIs(t, h.coord.RegisterWithState("b", LivenessState(7)), ErrInvalidState)

	require.NoError(t, h.coord.Register("b"))
	require.ElementsMatch(t, []EntityID{"a", "b"}, slices.Collect(h.coord.Entities()))

	require.NoError(t, h.coord.Deregister("a"))
	require.ErrorIs(t, h.coord.Deregister("a"), ErrNotFound)
	require.Equal(t, []EntityID{"b"}, slices.Collect(h.coord.Entities()))

	// A deregistered entity produces no events.
	h.sweepAt(t, at(30*time.Second))
	require.Equal(t, EntityID("b"), h.nextEvent(t).EntityID)
	require.Equal(t, EntityID("b"), h.nextEvent(t).EntityID)
	h.requireNoEvent(t)
}

func TestCoordinator_Lifecycle(t *testing.T) {
	t.Run("operations before start", func(t *testing.T) {
		coord := New(WithClock(clock.NewManual(0)))

		require.False(t, coord.IsRunning())
		require.ErrorIs(t, coord.Register("a"), ErrNotStarted)
		require.ErrorIs(t, coord.Heartbeat("a"), ErrNotStarted)
		require.ErrorIs(t, coord.Deregister("a"), ErrNotStarted)
		_, err := coord.CurrentState("a")
		require.ErrorIs(t, err, ErrNotStarted)
		_, err = coord.Subscribe(NewChanSubscriber(1))
		require.ErrorIs(t, err, ErrNotStarted)
		_, err = coord.Sweep(t.Context())
		require.ErrorIs(t, err, ErrNotStarted)
		require.ErrorIs(t, coord.Stop(t.Context()), ErrNotStarted)
		require.Empty(t, slices.Collect(coord.Entities()))
	})

	t.Run("start twice", func(t *testing.T) {
		coord := New(WithClock(clock.NewManual(0)))
		cfg := manualConfig()

		require.NoError(t, coord.Start(t.Context(), &cfg))
		defer coord.Stop(context.Background()) //nolint:errcheck

		require.True(t, coord.IsRunning())
		require.ErrorIs(t, coord.Start(t.Context(), &cfg), ErrAlreadyStarted)
	})

	t.Run("invalid config", func(t *testing.T) {
		coord := New(WithClock(clock.NewManual(0)))
		cfg := manualConfig()
		cfg.DeadAfter = time.Second

		err := coord.Start(t.Context(), &cfg)
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.False(t, coord.IsRunning())
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		coord := New(WithClock(clock.NewManual(0)))

		require.NoError(t, coord.Start(t.Context(), nil))
		require.NoError(t, coord.Stop(t.Context()))
	})

	t.Run("after stop", func(t *testing.T) {
		coord := New(WithClock(clock.NewManual(0)))
		cfg := manualConfig()
		require.NoError(t, coord.Start(t.Context(), &cfg))
		require.NoError(t, coord.RegisterWithState("a", StateSuspect))

		events, _, err := coord.SubscribeChan(1)
		require.NoError(t, err)

		require.NoError(t, coord.Stop(t.Context()))
		require.NoError(t, coord.Stop(t.Context()))
		require.False(t, coord.IsRunning())

		_, open := <-events
		require.False(t, open, "channel subscribers are closed on stop")

		require.ErrorIs(t, coord.Register("b"), ErrStopped)
		require.ErrorIs(t, coord.Heartbeat("a"), ErrStopped)
		require.ErrorIs(t, coord.Deregister("a"), ErrStopped)
		_, err = coord.Subscribe(NewChanSubscriber(1))
		require.ErrorIs(t, err, ErrStopped)
		require.ErrorIs(t, coord.Unsubscribe(1), ErrStopped)
		_, err = coord.Sweep(t.Context())
		require.ErrorIs(t, err, ErrStopped)
		require.ErrorIs(t, coord.Start(t.Context(), &cfg), ErrStopped)

		// Last known state stays queryable.
		state, err := coord.CurrentState("a")
		require.NoError(t, err)
		require.Equal(t, StateSuspect, state)
		require.Equal(t, []EntityID{"a"}, slices.Collect(coord.Entities()))
	})
}

func TestCoordinator_PeriodicSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Second
	h := newHarness(t, cfg)

	require.NoError(t, h.coord.Register("E"))

	h.clock.Advance(4 * time.Second)
	h.requireState(t, "E", StateAlive)

	h.clock.Advance(time.Second)
	h.requireState(t, "E", StateSuspect)
	require.Equal(t, StateSuspect, h.nextEvent(t).To)
}

type countingMetrics struct {
	*metrics.NopMetrics

	skipped     atomic.Int64
	transitions atomic.Int64
	heartbeats  sync.Map // result -> *atomic.Int64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{NopMetrics: metrics.NewNop()}
}

func (m *countingMetrics) RecordSweepSkipped() { m.skipped.Add(1) }

func (m *countingMetrics) RecordTransition(_, _ LivenessState) { m.transitions.Add(1) }

func (m *countingMetrics) RecordHeartbeat(result string) {
	v, _ := m.heartbeats.LoadOrStore(result, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

func (m *countingMetrics) heartbeatCount(result string) int64 {
	v, ok := m.heartbeats.Load(result)
	if !ok {
		return 0
	}

	return v.(*atomic.Int64).Load()
}

func TestCoordinator_TickSkippedWhileSweeping(t *testing.T) {
	m := newCountingMetrics()
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Second
	h := newHarness(t, cfg, WithMetrics(m))

	require.NoError(t, h.coord.Register("E"))

	h.coord.sweepMu.Lock()
	h.coord.tick()
	h.coord.sweepMu.Unlock()

	require.Equal(t, int64(1), m.skipped.Load())
}

func TestCoordinator_Metrics(t *testing.T) {
	m := newCountingMetrics()
	cfg := manualConfig()
	cfg.AutoRegister = true
	h := newHarness(t, cfg, WithMetrics(m))

	h.clock.Set(at(time.Second))
	require.NoError(t, h.coord.Heartbeat("a"))
	require.NoError(t, h.coord.HeartbeatAt("a", at(2*time.Second)))
	require.NoError(t, h.coord.HeartbeatAt("a", at(time.Second)))
	require.ErrorIs(t, h.coord.Heartbeat(""), ErrInvalidEntityID)

	require.Equal(t, int64(1), m.heartbeatCount("registered"))
	require.Equal(t, int64(1), m.heartbeatCount("accepted"))
	require.Equal(t, int64(1), m.heartbeatCount("stale"))
	require.Equal(t, int64(1), m.heartbeatCount("rejected"))

	h.sweepAt(t, at(30*time.Second))
	require.Equal(t, int64(2), m.transitions.Load())
}

func TestCoordinator_SubscriberFailureIsolation(t *testing.T) {
	var hookErr atomic.Value
	hooks := &Hooks{
		OnError: func(_ context.Context, err error) error {
			hookErr.Store(err)
			return nil
		},
	}
	h := newHarness(t, manualConfig(), WithHooks(hooks))

	boom := errors.New("boom")
	_, err := h.coord.SubscribeFunc(func(context.Context, Event) error { return boom })
	require.NoError(t, err)
	_, err = h.coord.SubscribeFunc(func(context.Context, Event) error { panic("subscriber bug") })
	require.NoError(t, err)

	require.NoError(t, h.coord.Register("E"))
	stats := h.sweepAt(t, at(6*time.Second))
	require.Equal(t, 1, stats.Transitions)

	// The healthy channel subscriber still gets the event.
	require.Equal(t, StateSuspect, h.nextEvent(t).To)

	require.Eventually(t, func() bool {
		err, ok := hookErr.Load().(error)
		return ok && errors.Is(err, ErrSubscriberFailure)
	}, time.Second, 5*time.Millisecond)

	// Sweeping keeps working.
	h.sweepAt(t, at(20*time.Second))
	require.Equal(t, StateDead, h.nextEvent(t).To)
}

func TestCoordinator_Unsubscribe(t *testing.T) {
	h := newHarness(t, manualConfig())

	events, id, err := h.coord.SubscribeChan(4)
	require.NoError(t, err)

	require.NoError(t, h.coord.Unsubscribe(id))
	require.ErrorIs(t, h.coord.Unsubscribe(id), ErrSubscriptionNotFound)

	_, open := <-events
	require.False(t, open)
}

func TestCoordinator_OnSweepHook(t *testing.T) {
	got := make(chan SweepStats, 4)
	hooks := &Hooks{
		OnSweep: func(_ context.Context, stats SweepStats) error {
			got <- stats
			return nil
		},
	}
	h := newHarness(t, manualConfig(), WithHooks(hooks))

	require.NoError(t, h.coord.Register("a"))
	require.NoError(t, h.coord.Register("b"))
	h.sweepAt(t, at(6*time.Second))

	select {
	case stats := <-got:
		require.Equal(t, 2, stats.Entities)
		require.Equal(t, 2, stats.Transitions)
		require.Equal(t, at(6*time.Second), stats.At)
	case <-time.After(time.Second):
		t.Fatal("OnSweep not called")
	}
}

func TestCoordinator_AccrualPolicy(t *testing.T) {
	cfg := manualConfig()
	cfg.Policy = PolicyAccrual
	h := newHarness(t, cfg)

	require.NoError(t, h.coord.Register("E"))
	// Regular heartbeats every second.
	for i := 1; i <= 20; i++ {
		require.NoError(t, h.coord.HeartbeatAt("E", at(time.Duration(i)*time.Second)))
	}
	last := at(20 * time.Second)

	rec, err := h.coord.Record("E")
	require.NoError(t, err)
	require.Equal(t, 19, rec.Samples)

	h.sweepAt(t, last.Add(1300*time.Millisecond))
	h.requireState(t, "E", StateAlive)
	rec, err = h.coord.Record("E")
	require.NoError(t, err)
	require.InDelta(t, 2.91, rec.SuspicionScore, 0.05)

	// Far past the expected arrival both thresholds are crossed.
	h.sweepAt(t, last.Add(2*time.Second))
	require.Equal(t, StateSuspect, h.nextEvent(t).To)
	require.Equal(t, StateDead, h.nextEvent(t).To)

	require.NoError(t, h.coord.HeartbeatAt("E", last.Add(2100*time.Millisecond)))
	h.sweepAt(t, last.Add(2200*time.Millisecond))
	require.Equal(t, StateAlive, h.nextEvent(t).To)
}

func TestCoordinator_ParallelSweep(t *testing.T) {
	const entities = 1000

	cfg := manualConfig()
	cfg.SweepBatchSize = 16
	cfg.SweepWorkers = 8
	h := newHarness(t, cfg)

	for i := range entities {
		require.NoError(t, h.coord.Register(EntityID(fmt.Sprintf("e-%04d", i))))
	}

	stats := h.sweepAt(t, at(6*time.Second))
	require.Equal(t, entities, stats.Entities)
	require.Equal(t, entities, stats.Transitions)

	for id := range h.coord.Entities() {
		h.requireState(t, id, StateSuspect)
	}
}

func TestCoordinator_ConcurrentHeartbeats(t *testing.T) {
	const (
		workers    = 8
		heartbeats = 10_000
	)

	cfg := TestConfig()
	// Generous thresholds: scheduler hiccups must not read as failures.
	cfg.SuspectAfter = 5 * time.Second
	cfg.DeadAfter = 15 * time.Second
	cfg.SweepInterval = 10 * time.Millisecond

	coord := New(WithLogger(logging.NewTest(t)))
	require.NoError(t, coord.Start(t.Context(), &cfg))
	defer coord.Stop(context.Background()) //nolint:errcheck

	var transitions atomic.Int64
	_, err := coord.SubscribeFunc(func(context.Context, Event) error {
		transitions.Add(1)
		return nil
	})
	require.NoError(t, err)

	ids := make([]EntityID, workers)
	for i := range ids {
		ids[i] = EntityID(fmt.Sprintf("worker-%d", i))
		require.NoError(t, coord.Register(ids[i]))
	}

	// Strictly increasing timestamps per entity, all at or after the
	// registration baseline, so no heartbeat may be dropped as stale.
	base := coord.Now()
	last := base.Add(time.Duration(heartbeats) * time.Nanosecond)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Go(func() {
			for i := range heartbeats {
				assert.NoError(t, coord.HeartbeatAt(id, base.Add(time.Duration(i+1)*time.Nanosecond)))
			}
		})
	}
	wg.Wait()

	// Let a few periodic sweeps run against the final state.
	time.Sleep(5 * cfg.SweepInterval)

	require.ElementsMatch(t, ids, slices.Collect(coord.Entities()))
	for _, id := range ids {
		rec, err := coord.Record(id)
		require.NoError(t, err)
		require.Equal(t, StateAlive, rec.State, id)
		require.Equal(t, last, rec.LastSeen, id)
		require.Equal(t, uint64(heartbeats), rec.Heartbeats, id)
	}
	require.Zero(t, transitions.Load())
}

func TestCoordinator_EventChainsUnderConcurrentSweeps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	cfg.SuspectAfter = 20 * time.Millisecond
	cfg.DeadAfter = 40 * time.Millisecond
	cfg.SweepBatchSize = 8

	coord := New(WithLogger(logging.NewTest(t)))
	require.NoError(t, coord.Start(t.Context(), &cfg))
	defer coord.Stop(context.Background()) //nolint:errcheck

	ids := make([]EntityID, 40)
	for i := range ids {
		ids[i] = EntityID(fmt.Sprintf("e-%d", i))
		require.NoError(t, coord.Register(ids[i]))
	}

	var (
		mu     sync.Mutex
		last   = make(map[EntityID]LivenessState)
		broken atomic.Int64
	)
	_, err := coord.SubscribeFunc(func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()

		prev, ok := last[ev.EntityID]
		if !ok {
			prev = StateAlive
		}
		if prev != ev.From {
			broken.Add(1)
		}
		last[ev.EntityID] = ev.To

		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Go(func() {
			for i := range 200 {
				// Bursty senders: some entities go quiet long enough to be suspected.
				id := ids[(w*10+i)%len(ids)]
				if i%3 != 0 {
					assert.NoError(t, coord.Heartbeat(id))
				}
				if i%50 == 0 {
					_, _ = coord.Sweep(t.Context())
				}
				time.Sleep(200 * time.Microsecond)
			}
		})
	}
	wg.Wait()

	_, err = coord.Sweep(t.Context())
	require.NoError(t, err)
	require.NoError(t, coord.Stop(t.Context()))

	require.Zero(t, broken.Load(), "per-entity events must form a chain")
}
