package position

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mmbot/internal/schema"
)

var ErrInvalidFill = errors.New("fill size must be positive")

// Ledger tracks net positions and profit per symbol.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*schema.Position
	emit      func(schema.Event)
	now       func() time.Time
}

// New creates an empty ledger. emit may be nil.
func New(emit func(schema.Event)) *Ledger {
	if emit == nil {
		emit = func(schema.Event) {}
	}
	return &Ledger{
		positions: make(map[string]*schema.Position),
		emit:      emit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessFill applies an execution to the symbol's position and returns the
// updated position and the realized pnl delta. A fill against an opposite
// position realizes (price - entry) * sign * reduced quantity; any residual
// beyond the flat point opens a position at the fill price. Same-side fills
// move the entry to the volume weighted average.
func (l *Ledger) ProcessFill(f schema.Fill) (schema.Position, decimal.Decimal, error) {
	if !f.Size.IsPositive() {
		return schema.Position{}, decimal.Zero, ErrInvalidFill
	}
	delta := f.SignedSize()

	l.mu.Lock()
	p, ok := l.positions[f.Symbol]
	if !ok {
		p = &schema.Position{Symbol: f.Symbol}
		l.positions[f.Symbol] = p
	}

	realized := decimal.Zero
	switch {
	case p.Size.IsZero():
		p.Size = delta
		p.Entry = f.Price

	case p.Size.Sign() == delta.Sign():
		total := p.Size.Abs().Add(delta.Abs())
		p.Entry = p.Entry.Mul(p.Size.Abs()).Add(f.Price.Mul(delta.Abs())).Div(total)
		p.Size = p.Size.Add(delta)

	default:
		reduced := decimal.Min(p.Size.Abs(), delta.Abs())
		sign := decimal.NewFromInt(int64(p.Size.Sign()))
		realized = f.Price.Sub(p.Entry).Mul(sign).Mul(reduced)
		p.RealizedPnl = p.RealizedPnl.Add(realized)

		next := p.Size.Add(delta)
		switch {
		case next.IsZero():
			p.Size = decimal.Zero
			p.Entry = decimal.Zero
		case next.Sign() == p.Size.Sign():
			p.Size = next
		default:
			// flipped through flat, the residual opens at the fill price
			p.Size = next
			p.Entry = f.Price
		}
	}

	p.Mark = f.Price
	p.Fees = p.Fees.Add(f.Fee)
	p.UpdatedAt = l.now()
	copied := *p
	l.mu.Unlock()

	l.emit(schema.PositionUpdateEvent(copied))
	if !realized.IsZero() {
		l.emit(schema.PnlRealizedEvent(f.Symbol, realized))
	}
	return copied, realized, nil
}

// UpdateMarkPrice refreshes the mark used for unrealized pnl.
func (l *Ledger) UpdateMarkPrice(symbol string, mark decimal.Decimal) {
	if !mark.IsPositive() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	if !ok {
		return
	}
	p.Mark = mark
	p.UpdatedAt = l.now()
}

// CheckRiskLimits reports whether applying delta to the symbol's position
// stays inside the given limits. Zero limits disable their check.
func (l *Ledger) CheckRiskLimits(limits schema.RiskLimits, symbol string, delta decimal.Decimal) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := decimal.Zero
	mark := decimal.Zero
	if p, ok := l.positions[symbol]; ok {
		size = p.Size
		mark = p.Mark
	}
	projected := size.Add(delta)

	if limits.MaxNetPosition.IsPositive() && projected.Abs().GreaterThan(limits.MaxNetPosition) {
		return false
	}
	if limits.MaxNotional.IsPositive() && mark.IsPositive() &&
		projected.Abs().Mul(mark).GreaterThan(limits.MaxNotional) {
		return false
	}
	return true
}

// Get returns a copy of the symbol's position.
func (l *Ledger) Get(symbol string) (schema.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return schema.Position{}, false
	}
	return *p, true
}

// Size returns the signed net size for a symbol, zero when flat.
func (l *Ledger) Size(symbol string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.positions[symbol]; ok {
		return p.Size
	}
	return decimal.Zero
}

// All returns copies of every tracked position.
func (l *Ledger) All() []schema.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schema.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	return out
}

// RealizedPnl returns the sum of realized pnl across symbols.
func (l *Ledger) RealizedPnl() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.RealizedPnl)
	}
	return total
}

// TotalUnrealizedPnl returns the sum of unrealized pnl across symbols.
func (l *Ledger) TotalUnrealizedPnl() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.UnrealizedPnl())
	}
	return total
}

// TotalPnl returns realized plus unrealized pnl.
func (l *Ledger) TotalPnl() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.RealizedPnl).Add(p.UnrealizedPnl())
	}
	return total
}

// NetExposure returns the signed sum of size times mark across symbols.
func (l *Ledger) NetExposure() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.Size.Mul(p.Mark))
	}
	return total
}

// PositionValue returns the absolute exposure at mark across symbols.
func (l *Ledger) PositionValue() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.Notional())
	}
	return total
}
