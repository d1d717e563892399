package source

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/heartbeat/types"
)

// ErrListenerStarted is returned when starting a listener or watcher twice.
var ErrListenerStarted = errors.New("source already started")

// SubjectListener turns core NATS messages into heartbeats.
//
// A message on "<prefix>.<entityID>" is a heartbeat for entityID. The
// payload is ignored; arrival time is taken from the coordinator clock.
type SubjectListener struct {
	nc     *nats.Conn
	prefix string
	sink   HeartbeatSink
	logger types.Logger

	mu  sync.Mutex
	sub *nats.Subscription

	received atomic.Uint64
	rejected atomic.Uint64
}

// NewSubjectListener creates a listener for heartbeats published under prefix.
//
// Parameters:
//   - nc: NATS connection
//   - prefix: Subject prefix, e.g. "heartbeat"
//   - sink: Heartbeat receiver, typically *heartbeat.Coordinator
//   - opts: Optional configuration
//
// Returns:
//   - *SubjectListener: Listener, not yet subscribed
func NewSubjectListener(nc *nats.Conn, prefix string, sink HeartbeatSink, opts ...Option) *SubjectListener {
	o := applyOptions(opts)

	return &SubjectListener{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
		sink:   sink,
		logger: o.logger,
	}
}

// Subject returns the wildcard subject the listener subscribes to.
func (l *SubjectListener) Subject() string {
	return l.prefix + ".>"
}

// Start subscribes to the heartbeat subject.
//
// Messages are handled on the subscription's goroutine, in arrival order.
//
// Returns:
//   - error: ErrListenerStarted, or the NATS subscribe error
func (l *SubjectListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sub != nil {
		return ErrListenerStarted
	}

	sub, err := l.nc.Subscribe(l.Subject(), l.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.Subject(), err)
	}
	l.sub = sub

	l.logger.Info("heartbeat subject listener started", "subject", l.Subject())

	return nil
}

// Stop drains the subscription. Safe to call multiple times.
func (l *SubjectListener) Stop() error {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()

	if sub == nil {
		return nil
	}

	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}

	return nil
}

// Received returns the number of heartbeat messages accepted by the sink.
func (l *SubjectListener) Received() uint64 {
	return l.received.Load()
}

// Rejected returns the number of heartbeat messages the sink refused.
func (l *SubjectListener) Rejected() uint64 {
	return l.rejected.Load()
}

func (l *SubjectListener) handle(msg *nats.Msg) {
	id, ok := entityFromKey(l.prefix, msg.Subject)
	if !ok {
		l.rejected.Add(1)
		l.logger.Debug("ignoring heartbeat with empty entity", "subject", msg.Subject)

		return
	}

	deliver(l.sink, l.logger, id, &l.received, &l.rejected)
}

// entityFromKey strips "<prefix>." from a subject or KV key.
func entityFromKey(prefix, key string) (types.EntityID, bool) {
	id, found := strings.CutPrefix(key, prefix+".")
	if !found || id == "" {
		return "", false
	}

	return types.EntityID(id), true
}

func deliver(sink HeartbeatSink, logger types.Logger, id types.EntityID, received, rejected *atomic.Uint64) {
	err := sink.Heartbeat(id)
	if err == nil {
		received.Add(1)
		return
	}

	rejected.Add(1)
	if errors.Is(err, types.ErrNotFound) {
		logger.Debug("heartbeat from unregistered entity", "entity", id)
		return
	}
	logger.Warn("heartbeat rejected", "entity", id, "error", err)
}
