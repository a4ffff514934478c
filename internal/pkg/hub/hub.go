// Package hub fans one stream of values out to any number of subscribers.
//
// Publishing never blocks: every subscriber owns a small bounded buffer and a
// subscriber whose buffer is full misses the value. Only that subscriber is
// affected.
package hub

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultCapacity is the buffer size of each subscription.
const DefaultCapacity = 16

type Hub[T any] struct {
	mu       sync.RWMutex
	subs     map[*Subscription[T]]struct{}
	capacity int
	logger   *zap.Logger
}

type Option[T any] func(*Hub[T])

func WithCapacity[T any](capacity int) Option[T] {
	return func(h *Hub[T]) {
		h.capacity = capacity
	}
}

func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(h *Hub[T]) {
		h.logger = logger
	}
}

func New[T any](opts ...Option[T]) *Hub[T] {
	h := &Hub[T]{
		subs:     make(map[*Subscription[T]]struct{}),
		capacity: DefaultCapacity,
		logger:   zap.L(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscription receives every value published while it is registered, in
// publish order, except values dropped because its buffer was full.
type Subscription[T any] struct {
	hub     *Hub[T]
	ch      chan T
	once    sync.Once
	dropped uint64
}

// Subscribe registers a new subscription. Callers must Close it when done,
// usually with defer.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		hub: h,
		ch:  make(chan T, h.capacity),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// C is closed once the subscription is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values this subscription has missed.
func (s *Subscription[T]) Dropped() uint64 {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.dropped
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Publish hands v to every registered subscription without waiting.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- v:
		default:
			s.dropped++
			h.logger.Warn("subscriber queue full, dropping value", zap.Int("capacity", h.capacity), zap.Uint64("dropped", s.dropped))
		}
	}
}

// Len returns the number of registered subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
