package heartbeat

import (
	"context"
	"sync"
)

// ChanSubscriber delivers events to a buffered channel.
//
// Notify never blocks: when the buffer is full the event is dropped and
// ErrSubscriberBackpressure is returned, which the coordinator reports like
// any other subscriber failure.
type ChanSubscriber struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// Compile-time assertion that ChanSubscriber implements Subscriber.
var _ Subscriber = (*ChanSubscriber)(nil)

// NewChanSubscriber creates a channel subscriber with the given buffer size.
func NewChanSubscriber(buffer int) *ChanSubscriber {
	if buffer < 0 {
		buffer = 0
	}

	return &ChanSubscriber{ch: make(chan Event, buffer)}
}

// C returns the receive side of the channel. It is closed by Close.
func (s *ChanSubscriber) C() <-chan Event {
	return s.ch
}

// Notify implements Subscriber.
func (s *ChanSubscriber) Notify(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	select {
	case s.ch <- ev:
		return nil
	default:
		return ErrSubscriberBackpressure
	}
}

// Close closes the channel. Later notifications are discarded.
func (s *ChanSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
