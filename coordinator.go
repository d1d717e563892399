package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/arloliu/heartbeat/clock"
	"github.com/arloliu/heartbeat/internal/detector"
	"github.com/arloliu/heartbeat/internal/dispatch"
	"github.com/arloliu/heartbeat/internal/hooks"
	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/internal/metrics"
	"github.com/arloliu/heartbeat/internal/registry"
)

const tracerName = "github.com/arloliu/heartbeat"

// Heartbeat results reported to MetricsCollector.RecordHeartbeat.
const (
	heartbeatAccepted   = "accepted"
	heartbeatStale      = "stale"
	heartbeatRejected   = "rejected"
	heartbeatRegistered = "registered"
)

// Coordinator tracks the liveness of registered entities.
//
// It owns the entity registry, runs the periodic sweep that turns missed
// heartbeats into state transitions, and delivers the resulting events to
// subscribers.
//
// Lifecycle:
//   - Create with New()
//   - Call Start() with a Config to begin sweeping
//   - Register entities and feed heartbeats from any goroutine
//   - Call Stop() for graceful shutdown
//
// Heartbeats never change an entity's state directly: a Suspect or Dead
// entity that resumes heartbeating returns to Alive on the next sweep.
type Coordinator struct {
	clock   Clock
	logger  Logger
	metrics MetricsCollector
	hooks   *Hooks
	tracer  trace.Tracer

	// Lifecycle management
	mu      sync.RWMutex
	cfg     Config
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	// Set by Start, read-only afterwards.
	registry    *registry.Registry
	detector    detector.Detector
	dispatcher  *dispatch.Dispatcher
	pool        *ants.Pool
	sweepHandle CancelHandle

	// sweepMu serializes sweeps; sweepClosed is guarded by it.
	sweepMu     sync.Mutex
	sweepClosed bool
	lastSweep   atomic.Int64 // wall-clock unix nanos of the last completed sweep

	chanSubs *xsync.Map[SubscriptionID, *ChanSubscriber]
}

// New creates a Coordinator.
//
// Returns a concrete *Coordinator struct following the "accept interfaces,
// return structs" principle.
//
// Parameters:
//   - opts: Optional dependencies (clock, logger, metrics, hooks, tracer provider)
//
// Returns:
//   - *Coordinator: Coordinator ready to Start
//
// Example:
//
//	coord := heartbeat.New(heartbeat.WithLogger(logging.NewSlogDefault()))
//	cfg := heartbeat.DefaultConfig()
//	if err := coord.Start(ctx, &cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.Stop(context.Background())
func New(opts ...Option) *Coordinator {
	options := &coordinatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	clk := options.clock
	if clk == nil {
		clk = clock.New()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	tp := options.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	return &Coordinator{
		clock:    clk,
		logger:   loggerInstance,
		metrics:  metricsCollector,
		hooks:    hooksInstance,
		tracer:   tp.Tracer(tracerName),
		chanSubs: xsync.NewMap[SubscriptionID, *ChanSubscriber](),
	}
}

// Start validates cfg and begins periodic sweeping.
//
// A nil cfg means DefaultConfig(). Missing values are filled with defaults
// before validation; cfg itself is not modified.
//
// Parameters:
//   - ctx: Parent context; cancelling it does not stop the coordinator (use Stop)
//   - cfg: Configuration
//
// Returns:
//   - error: ErrAlreadyStarted, ErrStopped, or a validation error wrapping ErrInvalidConfig
func (c *Coordinator) Start(ctx context.Context, cfg *Config) error {
	var conf Config
	if cfg == nil {
		conf = DefaultConfig()
	} else {
		conf = *cfg
	}
	SetDefaults(&conf)

	if err := conf.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return ErrAlreadyStarted
	}

	conf.ValidateWithWarnings(c.logger)

	pool, err := ants.NewPool(conf.SweepWorkers)
	if err != nil {
		return fmt.Errorf("failed to create sweep pool: %w", err)
	}

	c.cfg = conf
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.pool = pool
	c.detector = newDetector(conf)

	windowSize := 0
	if conf.Policy == PolicyAccrual {
		windowSize = conf.Accrual.WindowSize
	}
	c.registry = registry.New(windowSize)

	c.dispatcher = dispatch.New(c.ctx, dispatch.Config{
		Lanes:   conf.Dispatch.Lanes,
		Logger:  c.logger,
		Metrics: c.metrics,
		Hooks:   c.hooks,
	})

	c.lastSweep.Store(time.Now().UnixNano())
	c.sweepHandle = c.clock.SchedulePeriodic(conf.SweepInterval, c.tick)
	c.started = true

	c.logger.Info("coordinator started",
		"policy", conf.Policy.String(),
		"sweep_interval", conf.SweepInterval,
		"auto_register", conf.AutoRegister,
	)

	return nil
}

func newDetector(cfg Config) detector.Detector {
	if cfg.Policy == PolicyAccrual {
		return detector.Accrual{
			SuspectThreshold:       cfg.Accrual.SuspectThreshold,
			DeadThreshold:          cfg.Accrual.DeadThreshold,
			MinStdDev:              cfg.Accrual.MinStdDev,
			AcceptablePause:        cfg.Accrual.AcceptablePause,
			FirstHeartbeatEstimate: cfg.Accrual.FirstHeartbeatEstimate,
		}
	}

	return detector.NewFixedTimeout(cfg.SuspectAfter, cfg.DeadAfter)
}

// Stop stops sweeping, waits for an in-flight sweep and drains queued events.
//
// Safe to call multiple times; later calls return nil. Record and
// CurrentState keep answering from the last known state after Stop.
//
// Parameters:
//   - ctx: Bounds the wait for event delivery (together with Dispatch.DrainTimeout)
//
// Returns:
//   - error: ErrNotStarted if Start was never called, or the drain timeout
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	// Cancel waits for a running periodic callback, so c.mu must not be held.
	c.sweepHandle.Cancel()

	c.sweepMu.Lock()
	c.sweepClosed = true
	c.sweepMu.Unlock()

	c.pool.Release()

	drainCtx, cancel := context.WithTimeout(ctx, c.cfg.Dispatch.DrainTimeout)
	defer cancel()

	var shutdownErr error
	if err := c.dispatcher.Stop(drainCtx); err != nil {
		c.logError("event drain incomplete", "error", err)
		shutdownErr = fmt.Errorf("event drain failed: %w", err)
	}

	c.chanSubs.Range(func(id SubscriptionID, sub *ChanSubscriber) bool {
		sub.Close()
		c.chanSubs.Delete(id)

		return true
	})

	c.cancel()
	counts := c.registry.CountByState()
	c.logger.Info("coordinator stopped",
		"entities", c.registry.Len(),
		"alive", counts[StateAlive],
		"suspect", counts[StateSuspect],
		"dead", counts[StateDead],
	)

	return shutdownErr
}

// IsRunning reports whether the coordinator has been started and not stopped.
func (c *Coordinator) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.started && !c.stopped
}

// Now returns the coordinator clock's current timestamp.
func (c *Coordinator) Now() Timestamp {
	return c.clock.Now()
}

// mutate runs fn while the coordinator is running.
//
// Holding the read lock keeps Stop from completing while fn is in progress.
func (c *Coordinator) mutate(fn func() error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stopped {
		return ErrStopped
	}
	if !c.started {
		return ErrNotStarted
	}

	return fn()
}

// query returns the registry once the coordinator has been started, including after Stop.
func (c *Coordinator) query() (*registry.Registry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.started {
		return nil, ErrNotStarted
	}

	return c.registry, nil
}

// Register adds an entity in the Alive state.
//
// Registration time is the coordinator's current time and serves as the
// LastSeen baseline until the first heartbeat.
//
// Returns:
//   - error: ErrAlreadyRegistered, ErrInvalidEntityID, ErrNotStarted or ErrStopped
func (c *Coordinator) Register(id EntityID) error {
	return c.RegisterWithState(id, StateAlive)
}

// RegisterWithState adds an entity in the given initial state.
//
// Registering an entity as Dead or Suspect is useful when restoring a
// membership list whose members have not been heard from yet.
func (c *Coordinator) RegisterWithState(id EntityID, state LivenessState) error {
	return c.mutate(func() error {
		if err := c.registry.Register(id, state, c.clock.Now()); err != nil {
			return err
		}
		c.logger.Debug("entity registered", "entity", string(id), "state", state.String())

		return nil
	})
}

// Deregister removes an entity. No event is emitted.
//
// Returns:
//   - error: ErrNotFound, ErrNotStarted or ErrStopped
func (c *Coordinator) Deregister(id EntityID) error {
	return c.mutate(func() error {
		rec, err := c.registry.Deregister(id)
		if err != nil {
			return err
		}
		c.logger.Debug("entity deregistered", "entity", string(id), "state", rec.State.String())

		return nil
	})
}

// Heartbeat records a heartbeat for id at the current clock time.
func (c *Coordinator) Heartbeat(id EntityID) error {
	return c.HeartbeatAt(id, c.clock.Now())
}

// HeartbeatAt records a heartbeat for id observed at ts.
//
// Timestamps older than or equal to the entity's LastSeen are ignored
// without error. Unknown entities are registered as Alive when
// Config.AutoRegister is set and rejected with ErrNotFound otherwise.
//
// Parameters:
//   - id: Entity identifier
//   - ts: Observation time on the coordinator clock's timeline
//
// Returns:
//   - error: ErrNotFound, ErrInvalidEntityID, ErrNotStarted or ErrStopped
func (c *Coordinator) HeartbeatAt(id EntityID, ts Timestamp) error {
	return c.mutate(func() error {
		out, err := c.registry.RecordHeartbeat(id, ts, c.cfg.AutoRegister)
		if err != nil {
			c.metrics.RecordHeartbeat(heartbeatRejected)
			return err
		}

		switch {
		case out.Created:
			c.metrics.RecordHeartbeat(heartbeatRegistered)
			c.logger.Debug("entity auto-registered", "entity", string(id))
		case out.Stale:
			c.metrics.RecordHeartbeat(heartbeatStale)
		default:
			c.metrics.RecordHeartbeat(heartbeatAccepted)
		}

		return nil
	})
}

// CurrentState returns the liveness state stored by the last sweep.
//
// Works after Stop, returning the last known state.
//
// Returns:
//   - LivenessState: Stored state
//   - error: ErrNotFound or ErrNotStarted
func (c *Coordinator) CurrentState(id EntityID) (LivenessState, error) {
	rec, err := c.Record(id)
	if err != nil {
		return StateAlive, err
	}

	return rec.State, nil
}

// Record returns a snapshot of the entity's heartbeat record.
func (c *Coordinator) Record(id EntityID) (Record, error) {
	reg, err := c.query()
	if err != nil {
		return Record{}, err
	}

	return reg.Get(id)
}

// StateCounts returns how many registered entities are in each stored state.
//
// Every state is present in the map, zero when no entity holds it. Works
// after Stop, reporting the states left by the last sweep.
func (c *Coordinator) StateCounts() (map[LivenessState]int, error) {
	reg, err := c.query()
	if err != nil {
		return nil, err
	}

	return reg.CountByState(), nil
}

// Entities returns a lazy sequence of registered entity IDs.
//
// The sequence is empty before Start.
func (c *Coordinator) Entities() iter.Seq[EntityID] {
	reg, err := c.query()
	if err != nil {
		return func(func(EntityID) bool) {}
	}

	return reg.IDs()
}

// Subscribe registers sub for liveness events.
//
// Returns:
//   - SubscriptionID: Handle for Unsubscribe
//   - error: ErrNotStarted or ErrStopped
func (c *Coordinator) Subscribe(sub Subscriber) (SubscriptionID, error) {
	var id SubscriptionID
	err := c.mutate(func() error {
		id = c.dispatcher.Subscribe(sub)
		return nil
	})

	return id, err
}

// SubscribeFunc registers fn for liveness events.
func (c *Coordinator) SubscribeFunc(fn func(ctx context.Context, ev Event) error) (SubscriptionID, error) {
	return c.Subscribe(SubscriberFunc(fn))
}

// SubscribeChan registers a buffered channel subscriber.
//
// The channel is closed on Unsubscribe and on Stop. When the buffer is
// full, events are dropped and reported as ErrSubscriberBackpressure.
//
// Example:
//
//	events, _, err := coord.SubscribeChan(64)
//	for ev := range events {
//	    log.Printf("%s: %s -> %s", ev.EntityID, ev.From, ev.To)
//	}
func (c *Coordinator) SubscribeChan(buffer int) (<-chan Event, SubscriptionID, error) {
	sub := NewChanSubscriber(buffer)

	var id SubscriptionID
	err := c.mutate(func() error {
		id = c.dispatcher.Subscribe(sub)
		c.chanSubs.Store(id, sub)

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return sub.C(), id, nil
}

// Unsubscribe removes a subscription.
//
// Returns:
//   - error: ErrSubscriptionNotFound, ErrNotStarted or ErrStopped
func (c *Coordinator) Unsubscribe(id SubscriptionID) error {
	return c.mutate(func() error {
		if err := c.dispatcher.Unsubscribe(id); err != nil {
			return err
		}
		if sub, ok := c.chanSubs.LoadAndDelete(id); ok {
			sub.Close()
		}

		return nil
	})
}

// Sweep evaluates every entity now, waiting for any running sweep to finish first.
//
// Periodic sweeps run automatically; Sweep is for callers that need a
// verdict at a precise moment, such as tests using a manual clock.
//
// Returns:
//   - SweepStats: Summary of the sweep
//   - error: ErrNotStarted or ErrStopped
func (c *Coordinator) Sweep(ctx context.Context) (SweepStats, error) {
	c.mu.RLock()
	started, stopped := c.started, c.stopped
	c.mu.RUnlock()

	if stopped {
		return SweepStats{}, ErrStopped
	}
	if !started {
		return SweepStats{}, ErrNotStarted
	}

	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if c.sweepClosed {
		return SweepStats{}, ErrStopped
	}

	return c.sweepLocked(ctx), nil
}

// tick is the periodic sweep callback. A tick that finds a sweep in
// progress is skipped rather than queued.
func (c *Coordinator) tick() {
	if !c.sweepMu.TryLock() {
		c.metrics.RecordSweepSkipped()
		c.logger.Debug("sweep skipped, previous sweep still running")

		return
	}
	defer c.sweepMu.Unlock()

	if c.sweepClosed {
		return
	}

	c.sweepLocked(c.ctx)
}

// sweepLocked must be called with sweepMu held.
func (c *Coordinator) sweepLocked(ctx context.Context) SweepStats {
	started := time.Now()
	now := c.clock.Now()

	_, span := c.tracer.Start(ctx, "heartbeat.sweep",
		trace.WithAttributes(attribute.String("heartbeat.policy", c.cfg.Policy.String())))
	defer span.End()

	ids := slices.Collect(c.registry.IDs())

	var (
		transitions atomic.Int64
		counts      [3]atomic.Int64
	)
	evaluateBatch := func(batch []EntityID) {
		for _, id := range batch {
			n, state, ok := c.evaluate(id, now)
			if !ok {
				continue
			}
			transitions.Add(int64(n))
			if state.Valid() {
				counts[state].Add(1)
			}
		}
	}

	batchSize := c.cfg.SweepBatchSize
	if len(ids) <= batchSize {
		evaluateBatch(ids)
	} else {
		var wg sync.WaitGroup
		for batch := range slices.Chunk(ids, batchSize) {
			wg.Add(1)
			if err := c.pool.Submit(func() {
				defer wg.Done()
				evaluateBatch(batch)
			}); err != nil {
				// Pool released or overloaded; evaluate on the caller.
				wg.Done()
				evaluateBatch(batch)
			}
		}
		wg.Wait()
	}

	stats := SweepStats{
		At:          now,
		Entities:    len(ids),
		Transitions: int(transitions.Load()),
		Duration:    time.Since(started),
	}

	for _, state := range []LivenessState{StateAlive, StateSuspect, StateDead} {
		c.metrics.RecordEntities(state, int(counts[state].Load()))
	}
	c.metrics.RecordSweep(stats.Duration.Seconds(), stats.Entities)
	c.lastSweep.Store(time.Now().UnixNano())

	span.SetAttributes(
		attribute.Int("heartbeat.entities", stats.Entities),
		attribute.Int("heartbeat.transitions", stats.Transitions),
	)
	span.SetStatus(codes.Ok, "")

	if stats.Transitions > 0 {
		c.logger.Debug("sweep finished",
			"entities", stats.Entities,
			"transitions", stats.Transitions,
			"duration", stats.Duration,
		)
	}

	if c.hooks.OnSweep != nil {
		// Run hook in background to avoid blocking the sweep
		go func() {
			if err := c.hooks.OnSweep(c.ctx, stats); err != nil {
				c.logError("sweep hook error", "error", err)
			}
		}()
	}

	return stats
}

// evaluate judges one entity and publishes its transitions.
//
// Events are published while the entry lock is held so that a concurrent
// sweep or deregistration cannot interleave events for the same entity.
//
// Returns:
//   - int: Number of events emitted
//   - LivenessState: State after evaluation
//   - bool: false if the entity was removed before it could be evaluated
func (c *Coordinator) evaluate(id EntityID, now Timestamp) (int, LivenessState, bool) {
	var (
		emitted int
		final   LivenessState
	)

	ok := c.registry.Update(id, func(e *registry.Entry) {
		verdict := c.detector.Evaluate(detector.View{
			LastSeen:   e.Record.LastSeen,
			Heartbeats: e.Record.Heartbeats,
			Intervals:  e.Intervals,
		}, now)
		e.Record.SuspicionScore = verdict.Score

		from := e.Record.State
		for _, to := range detector.Path(from, verdict.State, c.cfg.HardDeadline) {
			e.Record.State = to
			e.Record.LastTransition = now
			c.metrics.RecordTransition(from, to)

			ev := Event{EntityID: id, From: from, To: to, At: now, Score: verdict.Score}
			if err := c.dispatcher.Publish(ev); err != nil {
				c.logError("failed to publish event", "entity", string(id), "error", err)
			}
			c.logger.Info("liveness transition",
				"entity", string(id),
				"from", from.String(),
				"to", to.String(),
				"score", verdict.Score,
			)

			from = to
			emitted++
		}
		final = e.Record.State
	})

	return emitted, final, ok
}

// HealthHandler returns an HTTP handler serving /live and /ready.
//
// Liveness fails when no sweep has completed within three sweep intervals.
// Readiness fails unless the coordinator is running.
//
// Example:
//
//	http.Handle("/", coord.HealthHandler())
func (c *Coordinator) HealthHandler() http.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("sweep", func() error {
		c.mu.RLock()
		running := c.started && !c.stopped
		interval := c.cfg.SweepInterval
		c.mu.RUnlock()

		if !running {
			return nil
		}

		since := time.Since(time.Unix(0, c.lastSweep.Load()))
		if since > 3*interval {
			return fmt.Errorf("last sweep finished %v ago (interval %v)", since.Round(time.Millisecond), interval)
		}

		return nil
	})

	h.AddReadinessCheck("coordinator", func() error {
		c.mu.RLock()
		defer c.mu.RUnlock()

		switch {
		case c.stopped:
			return ErrStopped
		case !c.started:
			return ErrNotStarted
		default:
			return nil
		}
	})

	return h
}

// logError logs at error level and forwards the error to the OnError hook.
func (c *Coordinator) logError(msg string, keysAndValues ...any) {
	c.logger.Error(msg, keysAndValues...)

	if c.hooks.OnError == nil || c.ctx == nil {
		return
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if err, ok := keysAndValues[i+1].(error); ok {
			go func() {
				if herr := c.hooks.OnError(c.ctx, fmt.Errorf("%s: %w", msg, err)); herr != nil && !errors.Is(herr, context.Canceled) {
					c.logger.Error("error hook failed", "error", herr)
				}
			}()

			return
		}
	}
}
