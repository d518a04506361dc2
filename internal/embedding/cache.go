package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// CacheConfig bounds the process-lifetime embedding cache. Zero values mean unbounded.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// Cache stores vectors keyed by (model, content hash). It is safe for concurrent use.
// Stored and returned vectors are copies, and eviction swaps in a freshly built map,
// so a reader never observes a vector being mutated or removed under it.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]cacheEntry
	seq       uint64
	cfg       CacheConfig
	now       func() time.Time
	nextSweep time.Time // Put drops expired entries once this passes
}

type cacheEntry struct {
	vector   types.EmbeddingVector
	storedAt time.Time
	seq      uint64
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// CacheKey derives the cache key for a model and input text.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached vector. Expired entries are reported as misses.
func (c *Cache) Get(key string) (types.EmbeddingVector, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.expired(entry) {
		return types.EmbeddingVector{}, false
	}
	return entry.vector.Clone(), true
}

// Put stores a copy of v. It evicts when the cache exceeds its size bound and, with a
// TTL set, sweeps expired entries at most once per TTL.
func (c *Cache) Put(key string, v types.EmbeddingVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seq++
	c.entries[key] = cacheEntry{vector: v.Clone(), storedAt: now, seq: c.seq}

	switch {
	case c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries:
		c.evictLocked()
	case c.cfg.TTL > 0 && !now.Before(c.nextSweep):
		c.evictLocked()
	default:
		return
	}
	if c.cfg.TTL > 0 {
		c.nextSweep = now.Add(c.cfg.TTL)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e cacheEntry) bool {
	return c.cfg.TTL > 0 && c.now().Sub(e.storedAt) > c.cfg.TTL
}

type keyedEntry struct {
	key   string
	entry cacheEntry
}

// evictLocked rebuilds the entry map without expired entries and, when a size bound is
// set, without the oldest entries beyond the low watermark.
func (c *Cache) evictLocked() {
	live := make([]keyedEntry, 0, len(c.entries))
	for k, e := range c.entries {
		if !c.expired(e) {
			live = append(live, keyedEntry{key: k, entry: e})
		}
	}

	keep := len(live)
	if maxEntries := c.cfg.MaxEntries; maxEntries > 0 {
		watermark := maxEntries - maxEntries/10
		if keep > watermark {
			sort.Slice(live, func(i, j int) bool {
				return live[i].entry.seq > live[j].entry.seq
			})
			keep = watermark
		}
	}

	fresh := make(map[string]cacheEntry, keep)
	for _, kv := range live[:keep] {
		fresh[kv.key] = kv.entry
	}
	c.entries = fresh
}
