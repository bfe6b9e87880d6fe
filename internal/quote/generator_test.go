package quote

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmbot/internal/schema"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLadderShape(t *testing.T) {
	cfg := DefaultConfig("BTC")
	orders := Ladder(cfg, d("100"), decimal.Zero)
	require.Len(t, orders, 6)

	// spread = 20bps of 100 = 0.2, half = 0.1, step = 0.05
	wantBids := []string{"99.9", "99.85", "99.8"}
	wantAsks := []string{"100.1", "100.15", "100.2"}
	var bids, asks []schema.NewOrder
	for _, o := range orders {
		if o.Side == schema.SideBuy {
			bids = append(bids, o)
		} else {
			asks = append(asks, o)
		}
	}
	require.Len(t, bids, 3)
	require.Len(t, asks, 3)
	for i := range bids {
		assert.True(t, bids[i].Price.Equal(d(wantBids[i])), "bid[%d] = %v, want %s", i, bids[i].Price, wantBids[i])
		assert.True(t, asks[i].Price.Equal(d(wantAsks[i])), "ask[%d] = %v, want %s", i, asks[i].Price, wantAsks[i])
		assert.True(t, bids[i].Size.Equal(cfg.OrderSize))
	}
}

func TestLadderMinEdgeFloor(t *testing.T) {
	cfg := DefaultConfig("BTC")
	cfg.SpreadBps = d("2")
	cfg.MinEdgeBps = d("5")
	cfg.OrdersPerSide = 1

	orders := Ladder(cfg, d("100"), decimal.Zero)
	require.Len(t, orders, 2)
	// floored at 5bps: spread = 0.05, half = 0.025
	assert.True(t, orders[0].Price.Equal(d("99.975")), "bid = %v", orders[0].Price)
	assert.True(t, orders[1].Price.Equal(d("100.025")), "ask = %v", orders[1].Price)
}

func TestLadderInventorySkew(t *testing.T) {
	cfg := DefaultConfig("BTC")
	cfg.OrdersPerSide = 1

	long := Ladder(cfg, d("100"), d("2"))
	flat := Ladder(cfg, d("100"), decimal.Zero)
	require.Len(t, long, 2)

	// long inventory shifts both quotes down and widens the spread
	assert.True(t, long[0].Price.LessThan(flat[0].Price), "long bid below flat bid")
	assert.True(t, long[1].Price.LessThan(flat[1].Price), "long ask below flat ask")
	longSpread := long[1].Price.Sub(long[0].Price)
	flatSpread := flat[1].Price.Sub(flat[0].Price)
	assert.True(t, longSpread.GreaterThan(flatSpread))

	short := Ladder(cfg, d("100"), d("-2"))
	assert.True(t, short[0].Price.GreaterThan(flat[0].Price), "short bid above flat bid")
}

func TestLadderRejectsDegenerateInput(t *testing.T) {
	cfg := DefaultConfig("BTC")
	assert.Nil(t, Ladder(cfg, decimal.Zero, decimal.Zero))

	cfg.OrdersPerSide = 0
	assert.Nil(t, Ladder(cfg, d("100"), decimal.Zero))
}

func TestGeneratorRefreshGate(t *testing.T) {
	cfg := DefaultConfig("BTC")
	g := New(cfg)
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	// first refresh always fires
	actions := g.Refresh(d("100"), now)
	require.Len(t, actions, 6)

	// inside the interval with a still price: nothing
	assert.Nil(t, g.Refresh(d("100"), now.Add(500*time.Millisecond)))
	assert.False(t, g.ShouldRefresh(d("100.05"), now.Add(500*time.Millisecond)), "0.05%% move is below the gate")

	// >0.1% move forces a refresh early
	assert.True(t, g.ShouldRefresh(d("100.2"), now.Add(500*time.Millisecond)))

	// interval elapsed refreshes even when still
	assert.True(t, g.ShouldRefresh(d("100"), now.Add(time.Second)))
}

func TestGeneratorCancelsBeforePlacing(t *testing.T) {
	g := New(DefaultConfig("BTC"))
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	require.Len(t, g.Refresh(d("100"), now), 6)
	g.Track("a", "b", "c")

	actions := g.Refresh(d("101"), now.Add(2*time.Second))
	require.Len(t, actions, 9)
	assert.Equal(t, schema.ActionCancel, actions[0].Type)
	assert.Equal(t, schema.ActionCancel, actions[1].Type)
	assert.Equal(t, schema.ActionCancel, actions[2].Type)
	assert.Equal(t, []string{"a", "b", "c"}, []string{actions[0].OrderID, actions[1].OrderID, actions[2].OrderID})
	for _, a := range actions[3:] {
		assert.Equal(t, schema.ActionPlace, a.Type)
	}
	assert.Empty(t, g.ActiveQuotes(), "tracked quotes are consumed by the refresh")
}

func TestGeneratorDisable(t *testing.T) {
	g := New(DefaultConfig("BTC"))
	g.Disable()
	assert.False(t, g.Enabled())
	assert.Nil(t, g.Refresh(d("100"), time.Now()))

	g.Enable()
	assert.NotEmpty(t, g.Refresh(d("100"), time.Now()))
}

func TestGeneratorInventoryFlowsIntoLadder(t *testing.T) {
	cfg := DefaultConfig("BTC")
	cfg.OrdersPerSide = 1
	g := New(cfg)
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	g.SetInventory(d("2"))
	actions := g.Refresh(d("100"), now)
	require.Len(t, actions, 2)

	want := Ladder(cfg, d("100"), d("2"))
	assert.True(t, actions[0].Order.Price.Equal(want[0].Price))
	assert.True(t, actions[1].Order.Price.Equal(want[1].Price))
}
