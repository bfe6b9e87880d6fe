package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net holding in one symbol. Size is signed, positive long.
type Position struct {
	Symbol      string
	Size        decimal.Decimal
	Entry       decimal.Decimal
	Mark        decimal.Decimal
	RealizedPnl decimal.Decimal
	Fees        decimal.Decimal
	UpdatedAt   time.Time
}

// UnrealizedPnl returns (mark - entry) * size. Flat positions carry none.
func (p Position) UnrealizedPnl() decimal.Decimal {
	if p.Size.IsZero() {
		return decimal.Zero
	}
	return p.Mark.Sub(p.Entry).Mul(p.Size)
}

// Notional returns the absolute exposure at the mark price.
func (p Position) Notional() decimal.Decimal {
	return p.Mark.Mul(p.Size.Abs())
}

// IsFlat reports whether the position size is zero.
func (p Position) IsFlat() bool {
	return p.Size.IsZero()
}

// IsLong reports whether the position size is positive.
func (p Position) IsLong() bool {
	return p.Size.IsPositive()
}
