// Package cache provides the reference-counted, hash-keyed table behind the
// shader and instance caches.
//
// A Table maps keys to lazily constructed values. Any number of goroutines
// may call Acquire concurrently; each key is constructed at most once at a
// time, and only callers asking for that key wait while it is being built.
// Every successful Acquire returns a Ref which keeps the entry alive until it
// is released. ClearUnused sweeps entries that no Ref points at any more and
// destroys their values.
//
// ClearUnused and DestroyAll require exclusive access: no Acquire may be in
// flight while they run. The table does not guard against misuse.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// DefaultShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	DefaultShardCount = 16

	// shardMask is used for fast shard selection (DefaultShardCount - 1).
	shardMask = DefaultShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by Table for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// CreateFunc builds the value for a missing key.
// Returning ok == false means there is nothing to cache (for example the
// backend could not convert the content); the key is left absent so that a
// later request retries construction.
type CreateFunc[V any] func() (value V, ok bool, err error)

// Table is a sharded, reference-counted find-or-create table.
//
// Table must not be copied after creation (it contains mutexes).
type Table[K comparable, V any] struct {
	shards  [DefaultShardCount]*shard[K, V]
	hasher  Hasher[K]
	destroy func(V)

	// Statistics (atomic for lock-free reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	failures  atomic.Uint64
	evictions atomic.Uint64
}

// shard is a single shard of the table.
// The mutex guards map access only; construction never runs under it.
type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

// entry is a cache slot. It is inserted as a placeholder before
// construction and published by closing ready.
type entry[V any] struct {
	ready chan struct{}

	// Written by the constructing goroutine before ready is closed.
	value  V
	failed bool

	// refs counts live Refs. The table's own reference is implicit.
	refs atomic.Int64
}

// New creates an empty table.
//
// The hasher is used for shard selection. destroy is called for every value
// the table removes in ClearUnused or DestroyAll; it may be nil.
func New[K comparable, V any](hasher Hasher[K], destroy func(V)) *Table[K, V] {
	t := &Table[K, V]{
		hasher:  hasher,
		destroy: destroy,
	}
	for i := range t.shards {
		t.shards[i] = &shard[K, V]{
			entries: make(map[K]*entry[V]),
		}
	}
	return t
}

// getShard returns the shard for a given key.
func (t *Table[K, V]) getShard(key K) *shard[K, V] {
	return t.shards[t.hasher(key)&shardMask]
}

// Acquire returns a reference to the value for key, constructing it with
// create if the key is absent.
//
// Concurrent callers for the same absent key observe exactly one call to
// create; the others block until it completes. If create fails, its error is
// returned to the caller that ran it, the slot is removed and waiting callers
// retry (one of them becomes the new constructor). If create returns
// ok == false, Acquire returns (nil, nil) and nothing is cached.
//
// The returned Ref must be released when the caller no longer needs the
// value; until then ClearUnused will not reclaim it.
func (t *Table[K, V]) Acquire(key K, create CreateFunc[V]) (*Ref[V], error) {
	s := t.getShard(key)
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &entry[V]{ready: make(chan struct{})}
			s.entries[key] = e
			s.mu.Unlock()
			t.misses.Add(1)
			return t.construct(s, key, e, create)
		}
		s.mu.Unlock()

		<-e.ready
		if e.failed {
			// The constructor has already removed the slot; try again.
			continue
		}
		e.refs.Add(1)
		t.hits.Add(1)
		return &Ref[V]{e: e}, nil
	}
}

// construct runs create for a placeholder entry and publishes the result.
// A panic in create removes the placeholder and is re-raised.
func (t *Table[K, V]) construct(s *shard[K, V], key K, e *entry[V], create CreateFunc[V]) (*Ref[V], error) {
	done := false
	defer func() {
		if done {
			return
		}
		t.abandon(s, key, e)
	}()

	value, ok, err := create()
	if err != nil || !ok {
		done = true
		t.abandon(s, key, e)
		return nil, err
	}

	e.value = value
	e.refs.Add(1)
	done = true
	close(e.ready)
	return &Ref[V]{e: e}, nil
}

// abandon removes a placeholder whose construction did not produce a value
// and wakes its waiters.
func (t *Table[K, V]) abandon(s *shard[K, V], key K, e *entry[V]) {
	s.mu.Lock()
	if s.entries[key] == e {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	e.failed = true
	t.failures.Add(1)
	close(e.ready)
}

// ClearUnused removes every constructed entry that has no outstanding Ref
// and destroys its value. It returns the number of entries removed.
//
// ClearUnused must not be called concurrently with Acquire.
func (t *Table[K, V]) ClearUnused() int {
	removed := 0
	for _, s := range t.shards {
		var unused []V
		s.mu.Lock()
		for key, e := range s.entries {
			if !isReady(e) || e.refs.Load() > 0 {
				continue
			}
			delete(s.entries, key)
			unused = append(unused, e.value)
		}
		s.mu.Unlock()

		for _, v := range unused {
			t.destroyValue(v)
		}
		removed += len(unused)
	}
	t.evictions.Add(uint64(removed))
	return removed
}

// DestroyAll destroys every constructed entry regardless of outstanding
// references and empties the table. Refs obtained earlier still return
// their value, but the value has been destroyed.
//
// DestroyAll must not be called concurrently with Acquire.
func (t *Table[K, V]) DestroyAll() {
	for _, s := range t.shards {
		s.mu.Lock()
		entries := s.entries
		s.entries = make(map[K]*entry[V])
		s.mu.Unlock()

		for _, e := range entries {
			if isReady(e) {
				t.destroyValue(e.value)
			}
		}
	}
}

func (t *Table[K, V]) destroyValue(v V) {
	if t.destroy != nil {
		t.destroy(v)
	}
}

// isReady reports whether construction of e has completed successfully.
func isReady[V any](e *entry[V]) bool {
	select {
	case <-e.ready:
		return !e.failed
	default:
		return false
	}
}

// Len returns the total number of entries across all shards,
// including entries still under construction.
func (t *Table[K, V]) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// ShardLen returns the number of entries in each shard.
// Useful for debugging load distribution.
func (t *Table[K, V]) ShardLen() [DefaultShardCount]int {
	var lens [DefaultShardCount]int
	for i, s := range t.shards {
		s.mu.Lock()
		lens[i] = len(s.entries)
		s.mu.Unlock()
	}
	return lens
}

// Stats returns current table statistics.
func (t *Table[K, V]) Stats() Stats {
	hits := t.hits.Load()
	misses := t.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       t.Len(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Failures:  t.failures.Load(),
		Evictions: t.evictions.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (t *Table[K, V]) ResetStats() {
	t.hits.Store(0)
	t.misses.Store(0)
	t.failures.Store(0)
	t.evictions.Store(0)
}

// Stats contains table statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Hits is the number of Acquire calls served by an existing entry.
	Hits uint64
	// Misses is the number of Acquire calls that started a construction.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0.0 to 1.0.
	HitRate float64
	// Failures is the number of constructions that errored, panicked or
	// produced nothing.
	Failures uint64
	// Evictions is the number of entries removed by ClearUnused.
	Evictions uint64
}
