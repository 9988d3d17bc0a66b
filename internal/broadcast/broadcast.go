// Package broadcast is a small generic fan-out primitive: one
// publisher, any number of subscribers, each with its own buffered
// channel. It generalizes the register/unregister/broadcast channel
// loop the teacher's hub package uses to fan GitHub events out to
// WebSocket clients, but to a single in-process Stream rather than a
// goroutine-driven hub managing remote connections.
//
// A Stream never replays history to a late subscriber, and a slow
// subscriber is dropped from rather than allowed to stall a Publish —
// Publish is always non-blocking.
package broadcast

import (
	"sync"

	"github.com/lwj1994/okws-client/pkg/wslog"
)

// subscriberBuffer is how many pending values a subscriber's channel
// holds before Publish starts dropping values for it. The Supervisor's
// state stream and inbound stream both carry this; a subscriber that
// falls this far behind is assumed to be gone or stuck.
const subscriberBuffer = 16

// Stream is a fan-out broadcaster for values of type T. The zero value
// is not usable; construct one with New.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// New returns a ready-to-use Stream.
func New[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new listener and returns its channel along
// with an unsubscribe function. Calling unsubscribe more than once is
// safe. Subscribing after Close returns a channel that is already
// closed.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers v to every current subscriber without blocking: a
// subscriber whose buffer is full has v dropped for it rather than
// stalling the other subscribers or the caller.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for id, ch := range s.subs {
		select {
		case ch <- v:
		default:
			wslog.Logf("broadcast: dropped value for subscriber %d: buffer full", id)
		}
	}
}

// Close closes every subscriber channel and marks the Stream so that
// later Subscribe calls receive an already-closed channel. Close is
// idempotent.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
