// Package cache implements the process-wide Result Cache: a
// content-addressed map from a request's fingerprint to its immutable
// result, with LRU eviction under a byte budget and single-flight join
// for concurrent requests sharing the same fingerprint.
package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fingerprint is a stable content-addressed key, produced by
// ComputeFingerprint (fingerprint.go) from a network's canonical serialization plus the
// request's discriminant and options.
type Fingerprint [32]byte

// Entry is one cached result: the compressed payload and its original
// (pre-compression) size. The uncompressed size is what counts against
// the byte budget, so eviction pressure tracks what callers actually get
// back rather than how well a given result compresses.
type Entry struct {
	Payload       []byte // snappy-compressed
	UncompressedN int
}

type cacheEntry struct {
	key   Fingerprint
	entry Entry
}

// Cache is an LRU result cache bounded by total uncompressed byte size:
// fingerprint-keyed, snappy-compressed, with a configurable byte budget.
// Results are immutable once inserted.
type Cache struct {
	mu        sync.RWMutex
	budget    int
	used      int
	entries   map[Fingerprint]*list.Element
	lru       *list.List
	group     singleflight.Group

	hits   int64
	misses int64
}

// New creates a Result Cache with the given byte budget.
func New(budgetBytes int) *Cache {
	return &Cache{
		budget:  budgetBytes,
		entries: make(map[Fingerprint]*list.Element),
		lru:     list.New(),
	}
}

// Get returns a cached result for fp, if present, and marks it most
// recently used.
func (c *Cache) Get(fp Fingerprint) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fp]; ok {
		c.lru.MoveToFront(elem)
		c.hits++
		return elem.Value.(*cacheEntry).entry, true
	}
	c.misses++
	return Entry{}, false
}

// Put inserts an immutable result for fp, evicting least-recently-used
// entries until the cache is back under budget. A result already present
// for fp is left untouched (results are immutable once
// inserted") — Put on an existing key is a no-op beyond promoting it to
// most-recently-used.
func (c *Cache) Put(fp Fingerprint, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fp]; ok {
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: fp, entry: e})
	c.entries[fp] = elem
	c.used += e.UncompressedN

	for c.used > c.budget && c.lru.Len() > 0 {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.lru.Remove(back)
	ce := back.Value.(*cacheEntry)
	delete(c.entries, ce.key)
	c.used -= ce.entry.UncompressedN
}

// GetOrCompute joins concurrent callers sharing the same fingerprint into
// one in-flight compute call: the
// first caller runs compute and populates the cache; every other caller
// for the same fp blocks on singleflight.Group and receives the same
// result without recomputing. Every caller's outcome is counted exactly
// once against Stats' hit/miss totals, via the single Get below — a
// caller that joins an in-flight compute is counted as a miss, since it
// did trigger (shared) computation rather than serve purely from the
// store.
func (c *Cache) GetOrCompute(fp Fingerprint, compute func() (Entry, error)) (Entry, error) {
	if e, ok := c.Get(fp); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(string(fp[:]), func() (any, error) {
		// Re-check without touching Stats: another goroutine may have
		// populated the cache while this one was queued behind the
		// singleflight lock, but it already counted its own Get above.
		if e, ok := c.peek(fp); ok {
			return e, nil
		}
		e, err := compute()
		if err != nil {
			return Entry{}, err
		}
		c.Put(fp, e)
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// peek looks up fp and promotes it to most-recently-used without
// touching the hit/miss counters, for internal re-checks that must not
// double-count a caller's outcome that was already recorded by Get.
func (c *Cache) peek(fp Fingerprint) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[fp]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).entry, true
	}
	return Entry{}, false
}

// Stats reports cumulative hit/miss counters and the current footprint.
func (c *Cache) Stats() (hits, misses int64, usedBytes, budgetBytes int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, c.used, c.budget
}

// Clear empties the cache, resetting statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Fingerprint]*list.Element)
	c.lru = list.New()
	c.used = 0
	c.hits = 0
	c.misses = 0
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
