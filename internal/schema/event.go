package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics are dot separated. Subscribers match a whole topic, a dot prefix,
// or "*" for everything.
const (
	TopicOrderPlaced    = "orders.placed"
	TopicOrderUpdated   = "orders.updated"
	TopicOrderFilled    = "orders.filled"
	TopicOrderCancelled = "orders.cancelled"
	TopicPositionUpdate = "position.updated"
	TopicPnlRealized    = "pnl.realized"
	TopicRiskAlert      = "risk.alert"
	TopicRiskBreaker    = "risk.breaker"
	TopicTopOfBook      = "market.tob"
	TopicEngineError    = "engine.error"
	TopicEngineStatus   = "engine.status"
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Topic    string
	Priority Priority
	At       time.Time
	Payload  any
}

// NewEvent builds an event stamped with the current time.
func NewEvent(topic string, priority Priority, payload any) Event {
	return Event{
		Topic:    topic,
		Priority: priority,
		At:       time.Now().UTC(),
		Payload:  payload,
	}
}

// RiskAlert is published when a limit check rejects or breaches.
type RiskAlert struct {
	Symbol   string
	Reason   string
	Severity Severity
}

// BreakerTrip is published when a circuit breaker triggers.
type BreakerTrip struct {
	ID     string
	Symbol string
	Until  time.Time
}

// PnlRealized is published when a reducing fill locks in profit or loss.
type PnlRealized struct {
	Symbol string
	Amount decimal.Decimal
}

// EngineError is published on terminal failures.
type EngineError struct {
	Stage  string
	Symbol string
	Reason string
}

// EngineStatus is published on lifecycle changes.
type EngineStatus struct {
	Running bool
	Detail  string
}

// OrderPlacedEvent wraps a newly accepted order.
func OrderPlacedEvent(o Order) Event {
	return NewEvent(TopicOrderPlaced, PriorityHigh, o)
}

// OrderUpdatedEvent wraps an order state change.
func OrderUpdatedEvent(o Order) Event {
	return NewEvent(TopicOrderUpdated, PriorityHigh, o)
}

// OrderFilledEvent wraps an execution.
func OrderFilledEvent(f Fill) Event {
	return NewEvent(TopicOrderFilled, PriorityHigh, f)
}

// OrderCancelledEvent wraps a cancelled order.
func OrderCancelledEvent(o Order) Event {
	return NewEvent(TopicOrderCancelled, PriorityHigh, o)
}

// PositionUpdateEvent wraps the position after a fill.
func PositionUpdateEvent(p Position) Event {
	return NewEvent(TopicPositionUpdate, PriorityNormal, p)
}

// PnlRealizedEvent wraps a realized pnl delta.
func PnlRealizedEvent(symbol string, amount decimal.Decimal) Event {
	return NewEvent(TopicPnlRealized, PriorityNormal, PnlRealized{Symbol: symbol, Amount: amount})
}

// RiskAlertEvent wraps a limit breach.
func RiskAlertEvent(a RiskAlert) Event {
	priority := PriorityHigh
	if a.Severity == SeverityCritical {
		priority = PriorityCritical
	}
	return NewEvent(TopicRiskAlert, priority, a)
}

// BreakerTripEvent wraps a circuit breaker trigger.
func BreakerTripEvent(t BreakerTrip) Event {
	return NewEvent(TopicRiskBreaker, PriorityCritical, t)
}

// TopOfBookEvent wraps a market data snapshot.
func TopOfBookEvent(t TopOfBook) Event {
	return NewEvent(TopicTopOfBook, PriorityLow, t)
}

// EngineErrorEvent wraps a terminal failure.
func EngineErrorEvent(e EngineError) Event {
	return NewEvent(TopicEngineError, PriorityCritical, e)
}

// EngineStatusEvent wraps a lifecycle change.
func EngineStatusEvent(s EngineStatus) Event {
	return NewEvent(TopicEngineStatus, PriorityNormal, s)
}
