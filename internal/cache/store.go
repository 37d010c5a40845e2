package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	value     T
	writtenAt time.Time
	token     string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Store is a TTL cache scoped to the current session of a Sessions registry.
// Concurrent GetOrFetch calls for one key share a single fetch.
type Store[T any] struct {
	name     string
	ttl      time.Duration
	sessions *Sessions
	now      func() time.Time

	mu         sync.Mutex
	entries    map[string]entry[T]
	inflight   *singleflight.Group
	generation uint64
	// keyGens counts ClearKey calls per key.
	keyGens map[string]uint64
}

// NewStore creates a store whose entries live for ttl within one session.
func NewStore[T any](name string, ttl time.Duration, sessions *Sessions, opts ...Option) *Store[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		name:     name,
		ttl:      ttl,
		sessions: sessions,
		now:      o.now,
		entries:  make(map[string]entry[T]),
		inflight: new(singleflight.Group),
		keyGens:  make(map[string]uint64),
	}
}

// Name returns the store's resource name.
func (s *Store[T]) Name() string {
	return s.name
}

// TTL returns the entry lifetime.
func (s *Store[T]) TTL() time.Duration {
	return s.ttl
}

// Get returns the cached value for key. Entries from another session or past their
// TTL are evicted and reported as a miss.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	e, ok := s.entries[key]
	if !ok {
		log.Debug().Str("cache", s.name).Str("key", key).Msg("Cache miss")
		return zero, false
	}
	if !s.sessions.IsCurrent(e.token) {
		delete(s.entries, key)
		log.Debug().Str("cache", s.name).Str("key", key).Msg("Cache miss (stale session)")
		return zero, false
	}
	if s.now().Sub(e.writtenAt) >= s.ttl {
		delete(s.entries, key)
		log.Debug().Str("cache", s.name).Str("key", key).Msg("Cache miss (expired)")
		return zero, false
	}

	log.Debug().Str("cache", s.name).Str("key", key).Msg("Cache hit")
	return e.value, true
}

// Set stores value under key, stamped with the session current at write time.
func (s *Store[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
}

func (s *Store[T]) setLocked(key string, value T) {
	s.entries[key] = entry[T]{
		value:     value,
		writtenAt: s.now(),
		token:     s.sessions.CurrentToken(),
	}
}

// setIfGeneration writes only if neither Clear nor ClearKey(key) has run since gen
// and keyGen were read.
func (s *Store[T]) setIfGeneration(key string, value T, gen, keyGen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.keyGens[key] != keyGen {
		return false
	}
	s.setLocked(key, value)
	return true
}

// GetOrFetch returns the cached value or calls fetch once for all concurrent callers
// of the same key. Errors are returned to every waiter and never cached.
// The fetch runs with the context of the caller that started it.
func (s *Store[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	s.mu.Lock()
	group, gen, keyGen := s.inflight, s.generation, s.keyGens[key]
	s.mu.Unlock()

	res, err, shared := group.Do(key, func() (any, error) {
		// A previous flight may have landed between our miss and this call.
		if v, ok := s.Get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if !s.setIfGeneration(key, v, gen, keyGen) {
			log.Debug().Str("cache", s.name).Str("key", key).Msg("Discarding fetch result after clear")
		}
		return v, nil
	})
	if shared {
		log.Trace().Str("cache", s.name).Str("key", key).Msg("Joined in-flight fetch")
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Clear drops every entry and every in-flight tracker. Fetches already running
// finish but their results are not stored.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry[T])
	s.inflight = new(singleflight.Group)
	s.generation++
	s.keyGens = make(map[string]uint64)
}

// ClearKey drops one entry and stops new callers from joining its in-flight fetch.
// A fetch already running for key finishes but its result is not stored.
func (s *Store[T]) ClearKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.inflight.Forget(key)
	s.keyGens[key]++
}

// Len returns the number of stored entries, valid or not.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
