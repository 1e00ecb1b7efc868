// Package cache provides a small TTL cache for backend responses.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Store caches values by key for a fixed TTL. Concurrent Gets for the same
// missing key share a single load call. Only successful loads are stored.
type Store[V any] struct {
	// OnEvent, when set, is called with true for a hit and false for a miss.
	OnEvent func(hit bool)

	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.RWMutex
	items map[string]entry[V]
}

func New[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if it is fresher than the TTL,
// otherwise it runs load and caches the result. Callers that arrive while a
// load for the same key is in flight wait for it and share its outcome.
func (s *Store[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := s.lookup(key); ok {
		s.emit(true)
		return v, nil
	}
	s.emit(false)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while we waited.
		if v, ok := s.lookup(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.store(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate drops the entry for key, forcing the next Get to load.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear drops every entry.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	s.items = make(map[string]entry[V])
	s.mu.Unlock()
}

func (s *Store[V]) lookup(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || s.now().Sub(e.storedAt) >= s.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (s *Store[V]) store(key string, v V) {
	s.mu.Lock()
	s.items[key] = entry[V]{value: v, storedAt: s.now()}
	s.mu.Unlock()
}

func (s *Store[V]) emit(hit bool) {
	if s.OnEvent != nil {
		s.OnEvent(hit)
	}
}
