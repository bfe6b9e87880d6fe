package feed

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"mmbot/internal/obs"
	"mmbot/internal/schema"
)

func tob(symbol string, bid, ask string) schema.TopOfBook {
	return schema.TopOfBook{
		Symbol:  symbol,
		Bid:     decimal.RequireFromString(bid),
		BidSize: decimal.NewFromInt(1),
		Ask:     decimal.RequireFromString(ask),
		AskSize: decimal.NewFromInt(1),
	}
}

func TestTobCacheDedup(t *testing.T) {
	c := NewTobCache(10, nil)

	if got := c.Insert(tob("BTC", "100", "101")); got != CacheAdded {
		t.Fatalf("first insert = %v, want added", got)
	}
	if got := c.Insert(tob("BTC", "100", "101")); got != CacheDuplicate {
		t.Fatalf("repeat insert = %v, want duplicate", got)
	}
	// a different size is a different snapshot
	changed := tob("BTC", "100", "101")
	changed.BidSize = decimal.NewFromInt(2)
	if got := c.Insert(changed); got != CacheAdded {
		t.Fatalf("size change = %v, want added", got)
	}
	// same prices on another symbol are distinct
	if got := c.Insert(tob("ETH", "100", "101")); got != CacheAdded {
		t.Fatalf("other symbol = %v, want added", got)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
}

func TestTobCacheCountsDuplicates(t *testing.T) {
	m := obs.NewMetrics()
	c := NewTobCache(10, m)

	c.Insert(tob("BTC", "100", "101"))
	c.Insert(tob("BTC", "100", "101"))
	c.Insert(tob("BTC", "100", "101"))
	c.Insert(tob("BTC", "100", "102"))

	if got := m.Snapshot().FeedDuplicates; got != 2 {
		t.Fatalf("feed duplicates = %d, want 2", got)
	}
}

func TestTobCacheEvictsFIFO(t *testing.T) {
	c := NewTobCache(3, nil)

	for i := 0; i < 3; i++ {
		price := strconv.Itoa(100 + i)
		if got := c.Insert(tob("BTC", price, price+".5")); got != CacheAdded {
			t.Fatalf("insert %d = %v, want added", i, got)
		}
	}

	if got := c.Insert(tob("BTC", "200", "200.5")); got != CacheAddedWithEviction {
		t.Fatalf("overflow insert = %v, want added with eviction", got)
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}

	// the oldest entry was evicted and registers as new again
	if got := c.Insert(tob("BTC", "100", "100.5")); got != CacheAddedWithEviction {
		t.Fatalf("reinsert oldest = %v, want added with eviction", got)
	}
	// the most recent entry is still a duplicate
	if got := c.Insert(tob("BTC", "200", "200.5")); got != CacheDuplicate {
		t.Fatalf("recent entry = %v, want duplicate", got)
	}
}

func TestTobCacheDefaultCapacity(t *testing.T) {
	c := NewTobCache(0, nil)
	for i := 0; i < _defaultTobCacheCapacity; i++ {
		c.Insert(tob("BTC", strconv.Itoa(i+1), strconv.Itoa(i+2)))
	}
	if c.Len() != _defaultTobCacheCapacity {
		t.Fatalf("len = %d, want %d", c.Len(), _defaultTobCacheCapacity)
	}
	if got := c.Insert(tob("BTC", "5000", "5001")); got != CacheAddedWithEviction {
		t.Fatalf("insert past capacity = %v, want eviction", got)
	}
}
