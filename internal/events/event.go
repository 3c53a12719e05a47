package events

import (
	"sync"
)

// listenerSet is the shared core of ChannelEvent and CallbackEvent.
// Delivery happens outside mu, but deliverMu serializes Notify calls so every
// listener observes values in the order they were published.
type listenerSet[T any] struct {
	mu        sync.RWMutex
	deliverMu sync.Mutex
	listeners map[uint64]func(T)
	nextID    uint64
	replay    bool
	last      T
	hasLast   bool
}

func newListenerSet[T any](replay bool) listenerSet[T] {
	return listenerSet[T]{
		listeners: make(map[uint64]func(T)),
		replay:    replay,
	}
}

// subscribe registers fn and replays the last value to it when configured.
// Holding deliverMu keeps the replay ordered before any later Notify.
func (s *listenerSet[T]) subscribe(fn func(T)) uint64 {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	last, replay := s.last, s.replay && s.hasLast
	s.mu.Unlock()

	if replay {
		fn(last)
	}
	return id
}

func (s *listenerSet[T]) remove(id uint64) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

func (s *listenerSet[T]) notify(value T) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.last = value
	s.hasLast = true
	targets := make([]func(T), 0, len(s.listeners))
	for _, fn := range s.listeners {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(value)
	}
}

func (s *listenerSet[T]) latest() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

func (s *listenerSet[T]) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
