package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"mmbot/internal/schema"
)

// AccountState is the exchange's view of the account.
type AccountState struct {
	Equity       decimal.Decimal
	Withdrawable decimal.Decimal
}

// Gateway sends orders to the exchange.
type Gateway interface {
	// PlaceOrder submits an order and returns the exchange order id.
	PlaceOrder(ctx context.Context, o schema.NewOrder, clientOrderID uint64) (string, error)
	// CancelOrder cancels a resting order by exchange order id.
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// AccountState fetches the current account snapshot.
	AccountState(ctx context.Context) (AccountState, error)
}
