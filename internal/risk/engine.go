package risk

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"mmbot/internal/obs"
	"mmbot/internal/schema"
	"mmbot/pkg/exception"
)

var _hundred = decimal.NewFromInt(100)

// PositionView provides the current position for pre-trade checks.
type PositionView interface {
	Get(symbol string) (schema.Position, bool)
}

// Engine evaluates pre-trade risk and tracks per-symbol breach state.
type Engine struct {
	mu       sync.RWMutex
	limits   map[string]schema.RiskLimits
	breakers map[string]schema.CircuitBreaker
	tripped  map[string]time.Time
	dailyPnl map[string]decimal.Decimal
	trades   map[string]int64
	spread   map[string]decimal.Decimal
	lastMid  map[string]decimal.Decimal
	change   map[string]decimal.Decimal

	lastReset time.Time
	positions PositionView
	metrics   *obs.Metrics
	emit      func(schema.Event)
	now       func() time.Time
}

// NewEngine creates a risk engine over the given position view. metrics and
// emit may be nil.
func NewEngine(positions PositionView, metrics *obs.Metrics, emit func(schema.Event)) *Engine {
	if emit == nil {
		emit = func(schema.Event) {}
	}
	now := func() time.Time { return time.Now().UTC() }
	return &Engine{
		limits:    make(map[string]schema.RiskLimits),
		breakers:  make(map[string]schema.CircuitBreaker),
		tripped:   make(map[string]time.Time),
		dailyPnl:  make(map[string]decimal.Decimal),
		trades:    make(map[string]int64),
		spread:    make(map[string]decimal.Decimal),
		lastMid:   make(map[string]decimal.Decimal),
		change:    make(map[string]decimal.Decimal),
		lastReset: now(),
		positions: positions,
		metrics:   metrics,
		emit:      emit,
		now:       now,
	}
}

// SetLimits installs or replaces the limits for a symbol.
func (e *Engine) SetLimits(symbol string, limits schema.RiskLimits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits[symbol] = limits
}

// Limits returns the limits for a symbol.
func (e *Engine) Limits(symbol string) (schema.RiskLimits, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.limits[symbol]
	return l, ok
}

// RegisterBreaker installs a circuit breaker.
func (e *Engine) RegisterBreaker(b schema.CircuitBreaker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.breakers[b.ID] = b
}

// CheckOrderRisk evaluates an order against the symbol's limits. Checks run
// in a fixed order and the first failure wins: net position, notional,
// daily loss, circuit breaker. Symbols without limits pass.
func (e *Engine) CheckOrderRisk(o schema.NewOrder) error {
	e.mu.RLock()
	limits, hasLimits := e.limits[o.Symbol]
	dailyPnl := e.dailyPnl[o.Symbol]
	e.mu.RUnlock()

	var pos schema.Position
	if e.positions != nil {
		pos, _ = e.positions.Get(o.Symbol)
	}

	if hasLimits {
		if limits.MaxNetPosition.IsPositive() {
			projected := pos.Size.Add(o.SignedSize())
			if projected.Abs().GreaterThan(limits.MaxNetPosition) {
				e.reject(o.Symbol, "net position limit", schema.SeverityCritical)
				return exception.ErrRiskPositionLimit
			}
		}
		if limits.MaxNotional.IsPositive() {
			exposure := pos.Notional().Add(o.Notional())
			if exposure.GreaterThan(limits.MaxNotional) {
				e.reject(o.Symbol, "notional limit", schema.SeverityHigh)
				return exception.ErrRiskNotionalLimit
			}
		}
		if limits.MaxDailyLoss.IsPositive() && dailyPnl.LessThan(limits.MaxDailyLoss.Neg()) {
			e.reject(o.Symbol, "daily loss limit", schema.SeverityCritical)
			return exception.ErrRiskDailyLoss
		}
	}

	if e.IsCircuitBreakerActive(o.Symbol) {
		e.reject(o.Symbol, "circuit breaker active", schema.SeverityCritical)
		return exception.ErrRiskBreakerActive
	}
	return nil
}

func (e *Engine) reject(symbol, reason string, severity schema.Severity) {
	e.emit(schema.RiskAlertEvent(schema.RiskAlert{
		Symbol:   symbol,
		Reason:   reason,
		Severity: severity,
	}))
}

// UpdatePnl accumulates realized pnl for the current day. Breaching the daily
// loss limit trips the symbol's breakers but never blocks the caller.
func (e *Engine) UpdatePnl(symbol string, realized decimal.Decimal) {
	e.mu.Lock()
	daily := e.dailyPnl[symbol].Add(realized)
	e.dailyPnl[symbol] = daily
	limits, hasLimits := e.limits[symbol]
	e.mu.Unlock()

	if hasLimits && limits.MaxDailyLoss.IsPositive() && daily.LessThan(limits.MaxDailyLoss.Neg()) {
		e.reject(symbol, "daily loss limit breached", schema.SeverityCritical)
		e.tripSymbolBreakers(symbol)
	}
}

// UpdateTradeCount records one executed trade.
func (e *Engine) UpdateTradeCount(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades[symbol]++
}

// ObserveMarket records the current spread and the mid move since the last
// observation. A move beyond MaxPriceChangePct trips the symbol's breakers.
func (e *Engine) ObserveMarket(symbol string, spreadBps, mid decimal.Decimal) {
	e.mu.Lock()
	e.spread[symbol] = spreadBps
	changed := decimal.Zero
	if last, ok := e.lastMid[symbol]; ok && last.IsPositive() {
		changed = mid.Sub(last).Div(last).Mul(_hundred).Abs()
	}
	e.change[symbol] = changed
	e.lastMid[symbol] = mid
	limits, hasLimits := e.limits[symbol]
	e.mu.Unlock()

	if !hasLimits {
		return
	}
	if limits.MaxSpreadBps.IsPositive() && spreadBps.GreaterThan(limits.MaxSpreadBps) {
		e.reject(symbol, "spread above limit", schema.SeverityHigh)
	}
	if limits.MaxPriceChangePct.IsPositive() && changed.GreaterThan(limits.MaxPriceChangePct) {
		e.reject(symbol, "price moved too fast", schema.SeverityHigh)
		e.tripSymbolBreakers(symbol)
	}
}

// TriggerCircuitBreaker trips the breaker with the given id.
func (e *Engine) TriggerCircuitBreaker(id string) error {
	e.mu.Lock()
	b, ok := e.breakers[id]
	if !ok {
		e.mu.Unlock()
		return exception.ErrInvalidArgument
	}
	at := e.now()
	e.tripped[id] = at
	e.mu.Unlock()

	e.metrics.IncBreakerTrip()
	e.emit(schema.BreakerTripEvent(schema.BreakerTrip{
		ID:     b.ID,
		Symbol: b.Symbol,
		Until:  at.Add(b.Cooldown),
	}))
	return nil
}

func (e *Engine) tripSymbolBreakers(symbol string) {
	e.mu.RLock()
	ids := make([]string, 0)
	for id, b := range e.breakers {
		if b.Symbol == symbol || b.Symbol == "" {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()
	for _, id := range ids {
		if err := e.TriggerCircuitBreaker(id); err != nil {
			logs.Errorf("trip breaker %s: %v", id, err)
		}
	}
}

// IsCircuitBreakerActive reports whether any breaker covering the symbol is
// inside its cooldown. Expired trips are cleared.
func (e *Engine) IsCircuitBreakerActive(symbol string) bool {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	active := false
	for id, at := range e.tripped {
		b, ok := e.breakers[id]
		if !ok {
			delete(e.tripped, id)
			continue
		}
		if now.Sub(at) >= b.Cooldown {
			delete(e.tripped, id)
			continue
		}
		if b.Symbol == symbol || b.Symbol == "" {
			active = true
		}
	}
	return active
}

// RiskScore summarizes the symbol's current risk on a 0-100 scale:
// position utilization 40, exposure utilization 30, spread 20, price move 10.
func (e *Engine) RiskScore(symbol string) decimal.Decimal {
	e.mu.RLock()
	limits, hasLimits := e.limits[symbol]
	spread := e.spread[symbol]
	change := e.change[symbol]
	e.mu.RUnlock()

	if !hasLimits {
		return decimal.Zero
	}

	var pos schema.Position
	if e.positions != nil {
		pos, _ = e.positions.Get(symbol)
	}

	score := utilization(pos.Size.Abs(), limits.MaxNetPosition).Mul(decimal.NewFromInt(40))
	score = score.Add(utilization(pos.Notional(), limits.MaxNotional).Mul(decimal.NewFromInt(30)))
	score = score.Add(utilization(spread, limits.MaxSpreadBps).Mul(decimal.NewFromInt(20)))
	score = score.Add(utilization(change, limits.MaxPriceChangePct).Mul(decimal.NewFromInt(10)))

	return decimal.Min(score, _hundred)
}

func utilization(value, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	u := value.Div(limit)
	if u.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	if u.IsNegative() {
		return decimal.Zero
	}
	return u
}

// DailyPnl returns the realized pnl accumulated since the last reset.
func (e *Engine) DailyPnl(symbol string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dailyPnl[symbol]
}

// TradeCount returns the trades recorded since the last reset.
func (e *Engine) TradeCount(symbol string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trades[symbol]
}

// ResetDailyMetrics zeroes the daily pnl and trade counters.
func (e *Engine) ResetDailyMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dailyPnl = make(map[string]decimal.Decimal)
	e.trades = make(map[string]int64)
	e.lastReset = e.now()
	logs.Info("risk: daily metrics reset")
}

// StartDailyReset resets daily metrics once every 24h. The check runs hourly.
func (e *Engine) StartDailyReset(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.mu.RLock()
				due := e.now().Sub(e.lastReset) >= 24*time.Hour
				e.mu.RUnlock()
				if due {
					e.ResetDailyMetrics()
				}
			}
		}
	}()
}
