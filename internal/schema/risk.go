package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimits are per-symbol pre-trade limits. A zero limit disables that check.
type RiskLimits struct {
	MaxNetPosition    decimal.Decimal
	MaxNotional       decimal.Decimal
	MaxDailyLoss      decimal.Decimal
	MaxSpreadBps      decimal.Decimal
	MaxPriceChangePct decimal.Decimal
}

// CircuitBreaker halts order placement for a symbol after being triggered
// until its cooldown elapses.
type CircuitBreaker struct {
	ID       string
	Symbol   string
	Cooldown time.Duration
}

// ConservativeLimits is a tight limit template.
func ConservativeLimits() RiskLimits {
	return RiskLimits{
		MaxNetPosition:    decimal.NewFromInt(5),
		MaxNotional:       decimal.NewFromInt(10_000),
		MaxDailyLoss:      decimal.NewFromInt(500),
		MaxSpreadBps:      decimal.NewFromInt(50),
		MaxPriceChangePct: decimal.RequireFromString("0.5"),
	}
}

// ModerateLimits is the default limit template.
func ModerateLimits() RiskLimits {
	return RiskLimits{
		MaxNetPosition:    decimal.NewFromInt(20),
		MaxNotional:       decimal.NewFromInt(100_000),
		MaxDailyLoss:      decimal.NewFromInt(5_000),
		MaxSpreadBps:      decimal.NewFromInt(100),
		MaxPriceChangePct: decimal.NewFromInt(1),
	}
}
