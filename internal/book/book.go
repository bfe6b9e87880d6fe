package book

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mmbot/internal/schema"
)

var _two = decimal.NewFromInt(2)

// Level is one price level of the book.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Snapshot is a consistent read of the book for one symbol.
type Snapshot struct {
	Symbol string
	Bid    Level
	Ask    Level
	Mid    decimal.Decimal
	Spread decimal.Decimal
	At     time.Time
	Valid  bool
}

// Book maintains a sorted view of one symbol's market. Bids descend, asks ascend.
type Book struct {
	mu     sync.RWMutex
	symbol string
	bids   []Level
	asks   []Level
	at     time.Time
}

// New creates an empty book.
func New(symbol string) *Book {
	return &Book{symbol: symbol}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() string {
	return b.symbol
}

// ApplySnapshot replaces both sides of the book. Levels with zero or negative
// size are dropped.
func (b *Book) ApplySnapshot(bids, asks []Level, at time.Time) {
	nextBids := compactLevels(bids)
	nextAsks := compactLevels(asks)
	sort.Slice(nextBids, func(i, j int) bool { return nextBids[i].Price.GreaterThan(nextBids[j].Price) })
	sort.Slice(nextAsks, func(i, j int) bool { return nextAsks[i].Price.LessThan(nextAsks[j].Price) })

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = nextBids
	b.asks = nextAsks
	b.at = at
}

// ApplyTopOfBook replaces the book with a single level per side.
func (b *Book) ApplyTopOfBook(t schema.TopOfBook) {
	b.ApplySnapshot(
		[]Level{{Price: t.Bid, Size: t.BidSize}},
		[]Level{{Price: t.Ask, Size: t.AskSize}},
		t.At,
	)
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return Level{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return Level{}, false
	}
	return b.asks[0], true
}

// MidPrice returns the midpoint of the best bid and ask.
func (b *Book) MidPrice() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].Price.Add(b.asks[0].Price).Div(_two), true
}

// Spread returns best ask minus best bid.
func (b *Book) Spread() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].Price.Sub(b.bids[0].Price), true
}

// SpreadBps returns the spread in basis points of the mid price.
func (b *Book) SpreadBps() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return decimal.Zero, false
	}
	mid := b.bids[0].Price.Add(b.asks[0].Price).Div(_two)
	if mid.IsZero() {
		return decimal.Zero, false
	}
	spread := b.asks[0].Price.Sub(b.bids[0].Price)
	return spread.Div(mid).Mul(decimal.NewFromInt(10_000)), true
}

// VolumeWeightedMid returns the midpoint of the volume weighted average price
// of the top depth levels on each side.
func (b *Book) VolumeWeightedMid(depth int) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	vwBid, okBid := vwap(b.bids, depth)
	vwAsk, okAsk := vwap(b.asks, depth)
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return vwBid.Add(vwAsk).Div(_two), true
}

// Depth returns up to the given number of levels per side, best first.
func (b *Book) Depth(levels int) (bids, asks []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyLevels(b.bids, levels), copyLevels(b.asks, levels)
}

// Snapshot returns a consistent top-of-book view for quoting.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return Snapshot{Symbol: b.symbol, At: b.at}
	}
	bid, ask := b.bids[0], b.asks[0]
	mid := bid.Price.Add(ask.Price).Div(_two)
	return Snapshot{
		Symbol: b.symbol,
		Bid:    bid,
		Ask:    ask,
		Mid:    mid,
		Spread: ask.Price.Sub(bid.Price),
		At:     b.at,
		Valid:  true,
	}
}

func compactLevels(levels []Level) []Level {
	out := make([]Level, 0, len(levels))
	for _, lv := range levels {
		if lv.Size.IsPositive() && lv.Price.IsPositive() {
			out = append(out, lv)
		}
	}
	return out
}

func copyLevels(levels []Level, n int) []Level {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	out := make([]Level, n)
	copy(out, levels[:n])
	return out
}

func vwap(levels []Level, depth int) (decimal.Decimal, bool) {
	if len(levels) == 0 {
		return decimal.Zero, false
	}
	if depth <= 0 || depth > len(levels) {
		depth = len(levels)
	}
	notional := decimal.Zero
	size := decimal.Zero
	for _, lv := range levels[:depth] {
		notional = notional.Add(lv.Price.Mul(lv.Size))
		size = size.Add(lv.Size)
	}
	if size.IsZero() {
		return decimal.Zero, false
	}
	return notional.Div(size), true
}
