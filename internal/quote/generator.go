package quote

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mmbot/internal/schema"
)

var (
	_bpsDivisor = decimal.NewFromInt(10_000)
	_two        = decimal.NewFromInt(2)
	_four       = decimal.NewFromInt(4)

	// fair price move that forces a refresh ahead of the interval
	_refreshMoveThreshold = decimal.RequireFromString("0.001")
)

// Config tunes one symbol's quoting.
type Config struct {
	Symbol          string
	SpreadBps       decimal.Decimal
	MinEdgeBps      decimal.Decimal
	OrderSize       decimal.Decimal
	OrdersPerSide   int
	InventorySkew   decimal.Decimal
	RefreshInterval time.Duration
}

// DefaultConfig returns the standard quoting parameters for a symbol.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:          symbol,
		SpreadBps:       decimal.NewFromInt(20),
		MinEdgeBps:      decimal.NewFromInt(5),
		OrderSize:       decimal.NewFromInt(1),
		OrdersPerSide:   3,
		InventorySkew:   decimal.RequireFromString("0.1"),
		RefreshInterval: time.Second,
	}
}

// Ladder computes the two-sided quote ladder for a fair price and inventory.
// The spread is the configured bps (floored at the minimum edge) of the fair
// price, widened by the absolute inventory skew. Both sides shift down when
// long and up when short; deeper levels step out by a quarter spread.
func Ladder(cfg Config, fair, inventory decimal.Decimal) []schema.NewOrder {
	if !fair.IsPositive() || cfg.OrdersPerSide <= 0 || !cfg.OrderSize.IsPositive() {
		return nil
	}

	spreadBps := decimal.Max(cfg.SpreadBps, cfg.MinEdgeBps)
	skew := inventory.Mul(cfg.InventorySkew)
	spread := spreadBps.Mul(fair).Div(_bpsDivisor).Add(skew.Abs())
	half := spread.Div(_two)
	step := spread.Div(_four)

	orders := make([]schema.NewOrder, 0, 2*cfg.OrdersPerSide)
	for i := 0; i < cfg.OrdersPerSide; i++ {
		offset := step.Mul(decimal.NewFromInt(int64(i)))
		bid := fair.Sub(half).Sub(skew).Sub(offset)
		ask := fair.Add(half).Sub(skew).Add(offset)

		if bid.IsPositive() {
			orders = append(orders, schema.NewOrder{
				Symbol: cfg.Symbol,
				Side:   schema.SideBuy,
				Type:   schema.OrderTypeLimit,
				Price:  bid,
				Size:   cfg.OrderSize,
			})
		}
		if ask.IsPositive() {
			orders = append(orders, schema.NewOrder{
				Symbol: cfg.Symbol,
				Side:   schema.SideSell,
				Type:   schema.OrderTypeLimit,
				Price:  ask,
				Size:   cfg.OrderSize,
			})
		}
	}
	return orders
}

// Generator wraps Ladder with refresh gating and active quote tracking.
type Generator struct {
	cfg Config

	mu          sync.Mutex
	enabled     bool
	inventory   decimal.Decimal
	lastFair    decimal.Decimal
	lastRefresh time.Time
	active      []string
}

// New creates an enabled generator.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, enabled: true}
}

// Config returns the generator's configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Enable turns quoting on.
func (g *Generator) Enable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = true
}

// Disable turns quoting off. Refresh returns nothing while disabled.
func (g *Generator) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
}

// Enabled reports whether quoting is on.
func (g *Generator) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SetInventory updates the signed position used for skew.
func (g *Generator) SetInventory(size decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inventory = size
}

// Track records the ids of live quotes to cancel on the next refresh.
func (g *Generator) Track(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = append(g.active, ids...)
}

// Untrack forgets every tracked quote after an out-of-band cancel.
func (g *Generator) Untrack() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = g.active[:0]
}

// ActiveQuotes returns the tracked quote ids.
func (g *Generator) ActiveQuotes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.active))
	copy(out, g.active)
	return out
}

// ShouldRefresh reports whether quotes are due: the refresh interval elapsed
// or the fair price moved more than 0.1% since the last refresh.
func (g *Generator) ShouldRefresh(fair decimal.Decimal, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shouldRefreshLocked(fair, now)
}

func (g *Generator) shouldRefreshLocked(fair decimal.Decimal, now time.Time) bool {
	if !g.enabled || !fair.IsPositive() {
		return false
	}
	if g.lastRefresh.IsZero() {
		return true
	}
	if now.Sub(g.lastRefresh) >= g.cfg.RefreshInterval {
		return true
	}
	if g.lastFair.IsPositive() {
		moved := fair.Sub(g.lastFair).Div(g.lastFair).Abs()
		if moved.GreaterThan(_refreshMoveThreshold) {
			return true
		}
	}
	return false
}

// Refresh returns the actions for a quote cycle: cancels for every tracked
// quote first, then the new ladder. It returns nil when no refresh is due.
func (g *Generator) Refresh(fair decimal.Decimal, now time.Time) []schema.OrderAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.shouldRefreshLocked(fair, now) {
		return nil
	}

	actions := make([]schema.OrderAction, 0, len(g.active)+2*g.cfg.OrdersPerSide)
	for _, id := range g.active {
		actions = append(actions, schema.CancelAction(id))
	}
	g.active = g.active[:0]

	for _, o := range Ladder(g.cfg, fair, g.inventory) {
		actions = append(actions, schema.PlaceAction(o))
	}

	g.lastFair = fair
	g.lastRefresh = now
	return actions
}
