package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the trading
// loop. All methods are safe on a nil receiver so callers can run unmetered.
type Metrics struct {
	ordersPlaced    uint64
	ordersFilled    uint64
	ordersCancelled uint64
	ordersRejected  uint64
	ordersRetried   uint64

	riskRejections uint64
	breakerTrips   uint64

	busDrops       uint64
	feedDuplicates uint64

	submitLatency LatencyStats
	tickLatency   LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	OrdersPlaced    uint64
	OrdersFilled    uint64
	OrdersCancelled uint64
	OrdersRejected  uint64
	OrdersRetried   uint64
	RiskRejections  uint64
	BreakerTrips    uint64
	BusDrops        uint64
	FeedDuplicates  uint64
	SubmitLatency   LatencySnapshot
	TickLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncOrderPlaced records an exchange-acknowledged order.
func (m *Metrics) IncOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderFilled records a fill.
func (m *Metrics) IncOrderFilled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersFilled, 1)
}

// IncOrderCancelled records a cancel.
func (m *Metrics) IncOrderCancelled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersCancelled, 1)
}

// IncOrderRejected records a terminal rejection.
func (m *Metrics) IncOrderRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersRejected, 1)
}

// IncOrderRetried records a retry enqueue.
func (m *Metrics) IncOrderRetried() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersRetried, 1)
}

// IncRiskRejection records a pre-trade risk rejection.
func (m *Metrics) IncRiskRejection() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskRejections, 1)
}

// IncBreakerTrip records a circuit breaker activation.
func (m *Metrics) IncBreakerTrip() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.breakerTrips, 1)
}

// IncBusDrop records an event dropped by the bus.
func (m *Metrics) IncBusDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.busDrops, 1)
}

// IncFeedDuplicate records a deduplicated market data snapshot.
func (m *Metrics) IncFeedDuplicate() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.feedDuplicates, 1)
}

// ObserveSubmit measures one exchange request round trip.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	if m == nil {
		return
	}
	m.submitLatency.Observe(d)
}

// ObserveTick measures one control loop tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		OrdersPlaced:    atomic.LoadUint64(&m.ordersPlaced),
		OrdersFilled:    atomic.LoadUint64(&m.ordersFilled),
		OrdersCancelled: atomic.LoadUint64(&m.ordersCancelled),
		OrdersRejected:  atomic.LoadUint64(&m.ordersRejected),
		OrdersRetried:   atomic.LoadUint64(&m.ordersRetried),
		RiskRejections:  atomic.LoadUint64(&m.riskRejections),
		BreakerTrips:    atomic.LoadUint64(&m.breakerTrips),
		BusDrops:        atomic.LoadUint64(&m.busDrops),
		FeedDuplicates:  atomic.LoadUint64(&m.feedDuplicates),
		SubmitLatency:   m.submitLatency.Snapshot(),
		TickLatency:     m.tickLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
