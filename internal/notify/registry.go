// Package notify implements the observer registry shared by the ledger, the
// catalog cache, and the purchase coordinator. Subscribing returns a
// cancellation token; a cancelled subscriber is silently skipped on the next
// publish. This replaces non-owning observer lists: a component that goes
// away cancels its token instead of relying on weak references.
package notify

import "sync"

// Subscription is the cancellation token returned by Stream.Subscribe.
// Cancel is idempotent and safe to call concurrently with Publish; after it
// returns, the callback will not be invoked again.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the subscriber from its stream.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Stream is a fan-out notification list for values of type T. The zero value
// is not usable; construct with NewStream. Safe for concurrent use.
type Stream[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(T)
}

// NewStream returns an empty stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers fn and returns its cancellation token. A nil fn is
// accepted and never invoked, so callers don't need to guard registration.
func (s *Stream[T]) Subscribe(fn func(T)) *Subscription {
	s.mu.Lock()
	id := s.next
	s.next++
	if fn != nil {
		s.subs[id] = fn
	}
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}}
}

// Publish delivers v to every live subscriber, in unspecified order.
// Callbacks run synchronously on the caller's goroutine; the subscriber list
// is snapshotted first so callbacks may subscribe or cancel without
// deadlocking.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of live subscribers.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
