package emitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heartbeat/internal/logging"
	"github.com/arloliu/heartbeat/internal/natsutil"
	"github.com/arloliu/heartbeat/types"
)

// Common errors for emitter operations.
var (
	ErrNotStarted     = errors.New("emitter not started")
	ErrAlreadyStarted = errors.New("emitter already started")
	ErrNoEntityID     = errors.New("entity ID not set")
	ErrInvalidTTL     = errors.New("ttl must be > 0")
	ErrInvalidKey     = errors.New("invalid heartbeat key")
)

// Emitter publishes periodic keep-alive leases for one entity.
type Emitter struct {
	kv       jetstream.KeyValue
	key      string
	entityID string
	ttl      time.Duration

	interval       time.Duration
	publishTimeout time.Duration
	maxRetries     uint64
	logger         types.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	seq       atomic.Uint64
	published atomic.Uint64
	failures  atomic.Uint64
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithInterval overrides the publish interval. Defaults to TTL/2.
func WithInterval(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger types.Logger) Option {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxRetries bounds retries of one publish attempt. Defaults to 5.
func WithMaxRetries(n uint64) Option {
	return func(e *Emitter) {
		e.maxRetries = n
	}
}

// WithPublishTimeout bounds a single KV put. Defaults to 5s.
func WithPublishTimeout(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.publishTimeout = d
		}
	}
}

// New creates an emitter for entityID.
//
// Parameters:
//   - kv: JetStream KV bucket for heartbeat storage
//   - prefix: Key prefix, e.g. "hb"
//   - entityID: Identity this process vouches for
//   - ttl: How long one lease is valid; the default interval is ttl/2
//   - opts: Optional configuration
//
// Returns:
//   - *Emitter: New emitter, not yet started
//   - error: ErrNoEntityID, ErrInvalidTTL or ErrInvalidKey
func New(kv jetstream.KeyValue, prefix, entityID string, ttl time.Duration, opts ...Option) (*Emitter, error) {
	if entityID == "" {
		return nil, ErrNoEntityID
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	key := fmt.Sprintf("%s.%s", strings.TrimSuffix(prefix, "."), entityID)
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	e := &Emitter{
		kv:             kv,
		key:            key,
		entityID:       entityID,
		ttl:            ttl,
		interval:       ttl / 2,
		publishTimeout: 5 * time.Second,
		maxRetries:     5,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.interval <= 0 {
		e.interval = ttl
	}

	return e, nil
}

// validKey mirrors the JetStream KV key rules.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '/', r == '=', r == '.':
		default:
			return false
		}
	}

	return true
}

// Key returns the KV key this emitter writes.
func (e *Emitter) Key() string {
	return e.key
}

// Interval returns the publish interval.
func (e *Emitter) Interval() time.Duration {
	return e.interval
}

// Published returns the number of leases written successfully.
func (e *Emitter) Published() uint64 {
	return e.published.Load()
}

// Failures returns the number of publish attempts that gave up.
func (e *Emitter) Failures() uint64 {
	return e.failures.Load()
}

// IsStarted reports whether the emitter is running.
func (e *Emitter) IsStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.started
}

// Start publishes the first lease and begins the background loop.
//
// Parameters:
//   - ctx: Bounds the first publish; the loop itself runs until Stop
//
// Returns:
//   - error: ErrAlreadyStarted, or the first publish error
func (e *Emitter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	if err := e.publishWithRetry(ctx); err != nil {
		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.doneCh = make(chan struct{})
	e.started = true

	go e.publishLoop(loopCtx, e.doneCh)

	e.logger.Info("heartbeat emitter started", "key", e.key, "interval", e.interval, "ttl", e.ttl)

	return nil
}

// Stop ends the loop and deletes the heartbeat key.
//
// Deleting the key tells watchers the sender left on purpose instead of
// letting the lease run out.
//
// Parameters:
//   - ctx: Bounds the key deletion
//
// Returns:
//   - error: ErrNotStarted if not running, or the delete error
func (e *Emitter) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.started = false
	cancel, done := e.cancel, e.doneCh
	e.mu.Unlock()

	cancel()
	<-done

	if err := e.kv.Delete(ctx, e.key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("stopped but failed to delete heartbeat: %w", err)
	}

	e.logger.Info("heartbeat emitter stopped", "key", e.key, "published", e.Published())

	return nil
}

func (e *Emitter) publishLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.publishWithRetry(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("heartbeat publish failed", "key", e.key, "error", err)
			}
		}
	}
}

// publishWithRetry writes one lease, retrying connectivity errors until
// the next interval is due.
func (e *Emitter) publishWithRetry(ctx context.Context) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = min(50*time.Millisecond, e.interval/4)
	expo.MaxInterval = max(e.interval/2, expo.InitialInterval)
	expo.MaxElapsedTime = e.interval

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, e.maxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		err := e.publish(ctx)
		if err != nil && !natsutil.IsConnectivityError(err) {
			return backoff.Permanent(err)
		}

		return err
	}, policy, func(err error, wait time.Duration) {
		e.logger.Debug("retrying heartbeat publish", "key", e.key, "wait", wait, "error", err)
	})
	if err != nil {
		e.failures.Add(1)
		return err
	}
	e.published.Add(1)

	return nil
}

func (e *Emitter) publish(ctx context.Context) error {
	now := time.Now()
	lease := Lease{
		Entity:    e.entityID,
		Seq:       e.seq.Add(1),
		SentAt:    now,
		ExpiresAt: now.Add(e.ttl),
	}
	value, err := lease.Encode()
	if err != nil {
		return err
	}

	putCtx, cancel := context.WithTimeout(ctx, e.publishTimeout)
	defer cancel()

	if _, err := e.kv.Put(putCtx, e.key, value); err != nil {
		return fmt.Errorf("failed to publish heartbeat for %s: %w", e.entityID, err)
	}

	return nil
}
