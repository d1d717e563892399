package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heartbeat/types"
)

// KVWatcher turns JetStream KV updates into heartbeats.
//
// Every put to "<prefix>.<entityID>" is a heartbeat for entityID. Deletes
// and purges, including TTL expiry markers, are logged and ignored: the
// sweep decides when a silent entity is dead.
//
// Only updates made after Start count. Values already in the bucket are
// not replayed as heartbeats.
type KVWatcher struct {
	kv     jetstream.KeyValue
	prefix string
	sink   HeartbeatSink
	logger types.Logger

	mu      sync.Mutex
	watcher jetstream.KeyWatcher
	doneCh  chan struct{}

	received atomic.Uint64
	rejected atomic.Uint64
}

// NewKVWatcher creates a watcher for heartbeat keys under prefix.
//
// Parameters:
//   - kv: Heartbeat bucket, usually written by emitter.Emitter
//   - prefix: Key prefix, e.g. "hb"
//   - sink: Heartbeat receiver, typically *heartbeat.Coordinator
//   - opts: Optional configuration
//
// Returns:
//   - *KVWatcher: Watcher, not yet started
func NewKVWatcher(kv jetstream.KeyValue, prefix string, sink HeartbeatSink, opts ...Option) *KVWatcher {
	o := applyOptions(opts)

	return &KVWatcher{
		kv:     kv,
		prefix: strings.TrimSuffix(prefix, "."),
		sink:   sink,
		logger: o.logger,
	}
}

// Pattern returns the key pattern being watched.
func (w *KVWatcher) Pattern() string {
	return w.prefix + ".>"
}

// Start begins watching the bucket.
//
// Parameters:
//   - ctx: Bounds the watch; cancelling it ends the watch like Stop
//
// Returns:
//   - error: ErrListenerStarted, or the JetStream watch error
func (w *KVWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return ErrListenerStarted
	}

	watcher, err := w.kv.Watch(ctx, w.Pattern(), jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("failed to watch %s in bucket %s: %w", w.Pattern(), w.kv.Bucket(), err)
	}

	w.watcher = watcher
	w.doneCh = make(chan struct{})
	go w.watchLoop(watcher, w.doneCh)

	w.logger.Info("heartbeat KV watcher started", "bucket", w.kv.Bucket(), "pattern", w.Pattern())

	return nil
}

// Stop ends the watch and waits for the update loop to exit.
// Safe to call multiple times.
func (w *KVWatcher) Stop() error {
	w.mu.Lock()
	watcher, done := w.watcher, w.doneCh
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}

	err := watcher.Stop()
	<-done

	if err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return fmt.Errorf("failed to stop KV watcher: %w", err)
	}

	return nil
}

// Received returns the number of puts accepted by the sink.
func (w *KVWatcher) Received() uint64 {
	return w.received.Load()
}

// Rejected returns the number of puts the sink refused.
func (w *KVWatcher) Rejected() uint64 {
	return w.rejected.Load()
}

func (w *KVWatcher) watchLoop(watcher jetstream.KeyWatcher, done chan struct{}) {
	defer close(done)

	for entry := range watcher.Updates() {
		// A nil entry marks the end of the initial values.
		if entry == nil {
			continue
		}

		id, ok := entityFromKey(w.prefix, entry.Key())
		if !ok {
			continue
		}

		switch entry.Operation() {
		case jetstream.KeyValuePut:
			deliver(w.sink, w.logger, id, &w.received, &w.rejected)
		default:
			w.logger.Debug("heartbeat key removed", "entity", id, "op", entry.Operation().String())
		}
	}
}
