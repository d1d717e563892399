package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/heartbeat/internal/hooks"
	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/internal/metrics"
	"github.com/arloliu/heartbeat/types"
)

// getBatch caps how many queued items a lane pulls per wakeup.
const getBatch = 64

// drainMarker is enqueued once per lane by Stop; a lane exits when it reaches it.
type drainMarker struct{}

// Config configures a Dispatcher.
type Config struct {
	// Lanes is the number of parallel delivery lanes (minimum 1).
	Lanes int

	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks
}

// Dispatcher fans events out to registered subscribers.
type Dispatcher struct {
	subs   *xsync.Map[types.SubscriptionID, types.Subscriber]
	nextID atomic.Uint64

	lanes []*lane

	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	// ctx is passed to Subscriber.Notify; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	doneCh  chan struct{}
}

type lane struct {
	q      *queue.Queue
	doneCh chan struct{}
}

// New creates a dispatcher and starts its lane goroutines.
//
// Parameters:
//   - ctx: Parent of the delivery context handed to subscribers
//   - cfg: Dispatcher configuration (nil fields fall back to no-op implementations)
//
// Returns:
//   - *Dispatcher: Running dispatcher; call Stop to release it
func New(ctx context.Context, cfg Config) *Dispatcher {
	if cfg.Lanes < 1 {
		cfg.Lanes = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Hooks == nil {
		nopHooks := hooks.NewNop()
		cfg.Hooks = &nopHooks
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		subs:    xsync.NewMap[types.SubscriptionID, types.Subscriber](),
		lanes:   make([]*lane, cfg.Lanes),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		hooks:   cfg.Hooks,
		ctx:     dctx,
		cancel:  cancel,
		doneCh:  make(chan struct{}),
	}

	for i := range d.lanes {
		l := &lane{
			q:      queue.New(getBatch),
			doneCh: make(chan struct{}),
		}
		d.lanes[i] = l
		go d.runLane(l)
	}

	return d
}

// Subscribe registers sub and returns its subscription ID.
//
// IDs are never reused. A subscriber added while events are in flight
// receives only events delivered after it was added.
func (d *Dispatcher) Subscribe(sub types.Subscriber) types.SubscriptionID {
	id := types.SubscriptionID(d.nextID.Add(1))
	d.subs.Store(id, sub)
	d.metrics.RecordSubscribers(d.subs.Size())

	return id
}

// Unsubscribe removes a subscription.
//
// Returns:
//   - error: ErrSubscriptionNotFound if id is unknown or already removed
func (d *Dispatcher) Unsubscribe(id types.SubscriptionID) error {
	if _, ok := d.subs.LoadAndDelete(id); !ok {
		return fmt.Errorf("unsubscribe %d: %w", id, types.ErrSubscriptionNotFound)
	}
	d.metrics.RecordSubscribers(d.subs.Size())

	return nil
}

// Subscribers returns the number of active subscriptions.
func (d *Dispatcher) Subscribers() int {
	return d.subs.Size()
}

// Publish queues ev for delivery without waiting for subscribers.
//
// Returns:
//   - error: ErrDispatcherStopped after Stop has been called
func (d *Dispatcher) Publish(ev types.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return types.ErrDispatcherStopped
	}
	if err := d.laneFor(ev.EntityID).q.Put(ev); err != nil {
		return fmt.Errorf("%w: %w", types.ErrDispatcherStopped, err)
	}

	return nil
}

// Pending returns the number of events queued but not yet delivered.
func (d *Dispatcher) Pending() int {
	var n int64
	for _, l := range d.lanes {
		n += l.q.Len()
	}

	return int(n)
}

func (d *Dispatcher) laneFor(id types.EntityID) *lane {
	return d.lanes[xxh3.HashString(string(id))%uint64(len(d.lanes))]
}

// Stop stops accepting events, delivers everything already queued and
// shuts the lanes down.
//
// If ctx expires before the queues drain, the remaining events are dropped
// and the delivery context passed to subscribers is cancelled. Stop is
// idempotent; later calls wait for the first to finish.
//
// Returns:
//   - error: ctx.Err() if draining was cut short
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		select {
		case <-d.doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.stopped = true
	for _, l := range d.lanes {
		// Put only fails on a disposed queue, which cannot happen before stop.
		_ = l.q.Put(drainMarker{})
	}
	d.mu.Unlock()

	defer close(d.doneCh)
	defer d.cancel()

	for _, l := range d.lanes {
		select {
		case <-l.doneCh:
		case <-ctx.Done():
			dropped := 0
			d.cancel()
			for _, rest := range d.lanes {
				for _, item := range rest.q.Dispose() {
					if _, ok := item.(types.Event); ok {
						dropped++
					}
				}
			}
			d.logger.Warn("dispatcher drain timed out, dropping queued events", "dropped", dropped)

			return ctx.Err()
		}
	}

	for _, l := range d.lanes {
		l.q.Dispose()
	}

	return nil
}

func (d *Dispatcher) runLane(l *lane) {
	defer close(l.doneCh)

	for {
		items, err := l.q.Get(getBatch)
		if err != nil {
			// Disposed.
			return
		}

		for _, item := range items {
			switch v := item.(type) {
			case drainMarker:
				return
			case types.Event:
				d.deliver(v)
			}
		}
	}
}

func (d *Dispatcher) deliver(ev types.Event) {
	d.subs.Range(func(id types.SubscriptionID, sub types.Subscriber) bool {
		d.notify(id, sub, ev)
		return true
	})
}

func (d *Dispatcher) notify(id types.SubscriptionID, sub types.Subscriber, ev types.Event) {
	start := time.Now()
	err := safeNotify(d.ctx, sub, ev)
	d.metrics.RecordDelivery(err == nil, time.Since(start).Seconds())

	if err == nil {
		return
	}

	serr := &types.SubscriberError{Subscription: id, Event: ev, Err: err}
	d.logger.Warn("subscriber notification failed",
		"subscription", uint64(id),
		"entity", string(ev.EntityID),
		"from", ev.From.String(),
		"to", ev.To.String(),
		"error", err,
	)

	if d.hooks.OnError != nil {
		go func() {
			if herr := d.hooks.OnError(d.ctx, serr); herr != nil {
				d.logger.Error("error hook failed", "error", herr)
			}
		}()
	}
}

// safeNotify converts a subscriber panic into an error.
func safeNotify(ctx context.Context, sub types.Subscriber, ev types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return sub.Notify(ctx, ev)
}
