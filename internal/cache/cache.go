// Package cache implements the evaluation result cache: a size-bounded LRU
// with per-entry TTL. Only the code-review path consults it; plans, tests,
// and certifications are always re-evaluated.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harrison/tetrad/internal/models"
	"github.com/harrison/tetrad/internal/pattern"
)

// entry is one cached result plus its insertion time.
type entry struct {
	key        string
	value      *models.EvaluationResult
	insertedAt time.Time
}

// EvaluationCache is a TTL+LRU map from request fingerprint to result.
// Mutations take the exclusive lock; hit/miss counters are lock-free.
type EvaluationCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// New creates a cache with the given entry capacity and TTL.
func New(capacity int, ttl time.Duration) *EvaluationCache {
	if capacity < 1 {
		capacity = 1
	}
	return &EvaluationCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Key computes the fingerprint for a (code, language, kind) triple:
// SHA-256 over normalized code, language tag, and kind tag.
func Key(code, language string, kind models.EvaluationKind) string {
	h := sha256.New()
	h.Write([]byte(pattern.Normalize(code)))
	h.Write([]byte(language))
	h.Write([]byte(kind.Tag()))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key if present and fresh. Stale entries
// are removed on read. The LRU order is touched only on hit.
func (c *EvaluationCache) Get(key string) (*models.EvaluationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Since(ent.insertedAt) > c.ttl {
		c.removeElement(elem)
		c.misses.Add(1)
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return ent.value, true
}

// GetByCode is Get with the key derived from the code triple.
func (c *EvaluationCache) GetByCode(code, language string, kind models.EvaluationKind) (*models.EvaluationResult, bool) {
	return c.Get(Key(code, language, kind))
}

// Insert stores a result under key, evicting the least recently used entry
// on overflow.
func (c *EvaluationCache) Insert(key string, value *models.EvaluationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.insertedAt = time.Now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.removeElement(back)
		}
	}

	elem := c.order.PushFront(&entry{
		key:        key,
		value:      value,
		insertedAt: time.Now(),
	})
	c.items[key] = elem
}

// InsertByCode is Insert with the key derived from the code triple.
func (c *EvaluationCache) InsertByCode(code, language string, kind models.EvaluationKind, value *models.EvaluationResult) {
	c.Insert(Key(code, language, kind), value)
}

// Invalidate drops a single entry.
func (c *EvaluationCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear drops every entry. Counters are not reset.
func (c *EvaluationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// CleanupExpired removes stale entries and reports how many were dropped.
func (c *EvaluationCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if time.Since(elem.Value.(*entry).insertedAt) > c.ttl {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len reports the current entry count.
func (c *EvaluationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a counter snapshot.
func (c *EvaluationCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}

	return Stats{
		Hits:     hits,
		Misses:   misses,
		HitRate:  rate,
		Size:     c.Len(),
		Capacity: c.capacity,
	}
}

func (c *EvaluationCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}
