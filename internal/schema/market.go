package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopOfBook is a best bid/ask snapshot for one symbol.
type TopOfBook struct {
	Symbol  string
	Bid     decimal.Decimal
	BidSize decimal.Decimal
	Ask     decimal.Decimal
	AskSize decimal.Decimal
	At      time.Time
}

// Mid returns the midpoint of bid and ask.
func (t TopOfBook) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// Spread returns ask minus bid.
func (t TopOfBook) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}

// IsCrossed reports whether the bid is at or through the ask.
func (t TopOfBook) IsCrossed() bool {
	return t.Bid.GreaterThanOrEqual(t.Ask)
}
