package schema

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewOrder is a request to place an order.
type NewOrder struct {
	Symbol string
	Side   Side
	Type   OrderType
	Price  decimal.Decimal
	Size   decimal.Decimal
}

// Notional returns price times size.
func (o NewOrder) Notional() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// SignedSize returns the position delta the order would produce if fully filled.
func (o NewOrder) SignedSize() decimal.Decimal {
	if o.Side == SideSell {
		return o.Size.Neg()
	}
	return o.Size
}

// Order is the tracked state of a placed order.
type Order struct {
	ID            string
	ClientOrderID uint64
	Symbol        string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal
	Size          decimal.Decimal
	Filled        decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrderID returns a fresh order id.
func NewOrderID() string {
	return uuid.NewString()
}

// Remaining returns the unfilled quantity.
func (o Order) Remaining() decimal.Decimal {
	return o.Size.Sub(o.Filled)
}

// IsActive reports whether the order can still trade.
func (o Order) IsActive() bool {
	return o.Status.IsAvailable() && !o.Status.IsTerminal()
}

// Notional returns price times size.
func (o Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// Fill is an execution report for an order.
type Fill struct {
	OrderID string
	Symbol  string
	Side    Side
	Price   decimal.Decimal
	Size    decimal.Decimal
	Fee     decimal.Decimal
	At      time.Time
}

// SignedSize returns the position delta of the fill.
func (f Fill) SignedSize() decimal.Decimal {
	if f.Side == SideSell {
		return f.Size.Neg()
	}
	return f.Size
}

// OrderAction is one strategy instruction for the submission pipeline.
// Cancels for a symbol are ordered before places.
type OrderAction struct {
	Type    ActionType
	Order   NewOrder
	OrderID string
}

// PlaceAction wraps a new order request.
func PlaceAction(o NewOrder) OrderAction {
	return OrderAction{Type: ActionPlace, Order: o}
}

// CancelAction wraps an order id to cancel.
func CancelAction(orderID string) OrderAction {
	return OrderAction{Type: ActionCancel, OrderID: orderID}
}
