package feed

import (
	"strings"

	"mmbot/internal/obs"
	"mmbot/internal/schema"
)

// CacheResult added, duplicate, added with eviction
type CacheResult uint8

const (
	_cache_result_beg CacheResult = iota
	CacheAdded
	CacheDuplicate
	CacheAddedWithEviction
	_cache_result_end
)

func (r CacheResult) IsAvailable() bool {
	return r > _cache_result_beg && r < _cache_result_end
}

const _defaultTobCacheCapacity = 100

// TobCache deduplicates top-of-book snapshots over a bounded window of the
// most recent distinct entries. The oldest entry is evicted FIFO when full.
// Not safe for concurrent use; the feed owns it from a single goroutine.
type TobCache struct {
	capacity int
	metrics  *obs.Metrics
	seen     map[string]struct{}
	order    []string
}

// NewTobCache creates a cache holding capacity distinct snapshots.
// metrics may be nil.
func NewTobCache(capacity int, metrics *obs.Metrics) *TobCache {
	if capacity <= 0 {
		capacity = _defaultTobCacheCapacity
	}
	return &TobCache{
		capacity: capacity,
		metrics:  metrics,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Insert records a snapshot and reports whether it was new.
func (c *TobCache) Insert(t schema.TopOfBook) CacheResult {
	key := tobKey(t)
	if _, ok := c.seen[key]; ok {
		c.metrics.IncFeedDuplicate()
		return CacheDuplicate
	}

	result := CacheAdded
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
		result = CacheAddedWithEviction
	}
	c.seen[key] = struct{}{}
	c.order = append(c.order, key)
	return result
}

// Len returns the number of cached snapshots.
func (c *TobCache) Len() int {
	return len(c.order)
}

func tobKey(t schema.TopOfBook) string {
	var b strings.Builder
	b.WriteString(t.Symbol)
	b.WriteByte('|')
	b.WriteString(t.Bid.String())
	b.WriteByte('@')
	b.WriteString(t.BidSize.String())
	b.WriteByte('|')
	b.WriteString(t.Ask.String())
	b.WriteByte('@')
	b.WriteString(t.AskSize.String())
	return b.String()
}
