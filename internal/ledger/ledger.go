package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"mmbot/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order request")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

// Ledger tracks every order the engine has placed.
type Ledger struct {
	mu      sync.RWMutex
	orders  map[string]*schema.Order
	pending []schema.OrderAction
	emit    func(schema.Event)
	now     func() time.Time
}

// New creates an empty ledger. emit may be nil.
func New(emit func(schema.Event)) *Ledger {
	if emit == nil {
		emit = func(schema.Event) {}
	}
	return &Ledger{
		orders: make(map[string]*schema.Order),
		emit:   emit,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a new pending order and returns its tracked state.
func (l *Ledger) Add(req schema.NewOrder) (schema.Order, error) {
	if req.Symbol == "" || !req.Side.IsAvailable() || !req.Type.IsAvailable() {
		return schema.Order{}, ErrInvalidOrder
	}
	if !req.Size.IsPositive() {
		return schema.Order{}, ErrInvalidOrder
	}
	if req.Type != schema.OrderTypeMarket && !req.Price.IsPositive() {
		return schema.Order{}, ErrInvalidOrder
	}

	now := l.now()
	o := &schema.Order{
		ID:        schema.NewOrderID(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Size:      req.Size,
		Status:    schema.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	if _, ok := l.orders[o.ID]; ok {
		l.mu.Unlock()
		return schema.Order{}, ErrDuplicateOrder
	}
	l.orders[o.ID] = o
	copied := *o
	l.mu.Unlock()

	l.emit(schema.OrderPlacedEvent(copied))
	return copied, nil
}

// MarkSubmitted binds the exchange-facing client order id after a successful send.
func (l *Ledger) MarkSubmitted(id string, clientOrderID uint64) (schema.Order, error) {
	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		return schema.Order{}, ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		copied := *o
		l.mu.Unlock()
		return copied, ErrInvalidTransition
	}
	o.ClientOrderID = clientOrderID
	if o.Status == schema.OrderStatusPending {
		o.Status = schema.OrderStatusSubmitted
	}
	o.UpdatedAt = l.now()
	copied := *o
	l.mu.Unlock()

	l.emit(schema.OrderUpdatedEvent(copied))
	return copied, nil
}

// Update applies an exchange notification. Transitions out of terminal
// states, status regressions, and regressions of the filled quantity are
// rejected; stale notifications are the caller's normal case, not a fault.
func (l *Ledger) Update(id string, status schema.OrderStatus, filled decimal.Decimal) (schema.Order, error) {
	if !status.IsAvailable() {
		return schema.Order{}, ErrInvalidTransition
	}

	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		logs.Warnf("order ledger: update for unknown order %s dropped", id)
		return schema.Order{}, ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		copied := *o
		l.mu.Unlock()
		return copied, ErrInvalidTransition
	}
	// statuses are declared in transition order, a lower value is a regression
	if status < o.Status {
		copied := *o
		l.mu.Unlock()
		return copied, ErrInvalidTransition
	}
	if filled.IsNegative() || filled.LessThan(o.Filled) || filled.GreaterThan(o.Size) {
		copied := *o
		l.mu.Unlock()
		return copied, ErrInvalidFill
	}

	fillDelta := filled.Sub(o.Filled)
	o.Filled = filled
	o.Status = status
	if status == schema.OrderStatusFilled {
		o.Filled = o.Size
	}
	o.UpdatedAt = l.now()
	copied := *o
	l.mu.Unlock()

	l.emit(schema.OrderUpdatedEvent(copied))
	if fillDelta.IsPositive() {
		l.emit(schema.OrderFilledEvent(schema.Fill{
			OrderID: copied.ID,
			Symbol:  copied.Symbol,
			Side:    copied.Side,
			Price:   copied.Price,
			Size:    fillDelta,
			At:      copied.UpdatedAt,
		}))
	}
	return copied, nil
}

// RequestCancel marks an order cancelled and queues a cancel action for the
// submission pipeline. The cancel is optimistic; a later fill notification for
// the same order is rejected as a stale update.
func (l *Ledger) RequestCancel(id string) (schema.Order, error) {
	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		return schema.Order{}, ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		copied := *o
		l.mu.Unlock()
		return copied, ErrInvalidTransition
	}
	o.Status = schema.OrderStatusCancelled
	o.UpdatedAt = l.now()
	copied := *o
	l.pending = append(l.pending, schema.CancelAction(copied.ID))
	l.mu.Unlock()

	l.emit(schema.OrderCancelledEvent(copied))
	return copied, nil
}

// CancelAll cancels every active order, optionally filtered by symbol.
// It returns the cancelled orders.
func (l *Ledger) CancelAll(symbol string) []schema.Order {
	ids := make([]string, 0)
	l.mu.RLock()
	for id, o := range l.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	cancelled := make([]schema.Order, 0, len(ids))
	for _, id := range ids {
		o, err := l.RequestCancel(id)
		if err != nil {
			continue
		}
		cancelled = append(cancelled, o)
	}
	return cancelled
}

// DrainPendingActions returns queued cancel actions and clears the queue.
func (l *Ledger) DrainPendingActions() []schema.OrderAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	out := l.pending
	l.pending = nil
	return out
}

// Get returns a copy of the order.
func (l *Ledger) Get(id string) (schema.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	if !ok {
		return schema.Order{}, false
	}
	return *o, true
}

// ActiveOrders returns non-terminal orders, optionally filtered by symbol.
func (l *Ledger) ActiveOrders(symbol string) []schema.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schema.Order, 0)
	for _, o := range l.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	return out
}

// OrdersBySide returns active orders for one symbol and side.
func (l *Ledger) OrdersBySide(symbol string, side schema.Side) []schema.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schema.Order, 0)
	for _, o := range l.orders {
		if o.Status.IsTerminal() || o.Symbol != symbol || o.Side != side {
			continue
		}
		out = append(out, *o)
	}
	return out
}

// Exposure returns the open notional of active orders per side.
func (l *Ledger) Exposure(symbol string) (buy, sell decimal.Decimal) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.orders {
		if o.Status.IsTerminal() || o.Symbol != symbol {
			continue
		}
		notional := o.Price.Mul(o.Remaining())
		switch o.Side {
		case schema.SideBuy:
			buy = buy.Add(notional)
		case schema.SideSell:
			sell = sell.Add(notional)
		}
	}
	return buy, sell
}

// Len returns the number of tracked orders.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}
