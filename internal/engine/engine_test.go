package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmbot/internal/gateway"
	"mmbot/internal/ledger"
	"mmbot/internal/obs"
	"mmbot/internal/position"
	"mmbot/internal/quote"
	"mmbot/internal/risk"
	"mmbot/internal/schema"
	"mmbot/internal/submit"
)

type stubGateway struct {
	mu        sync.Mutex
	placed    []schema.NewOrder
	cancelled []string
	next      int
}

func (s *stubGateway) PlaceOrder(_ context.Context, o schema.NewOrder, _ uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, o)
	s.next++
	return fmt.Sprintf("ex-%d", s.next), nil
}

func (s *stubGateway) CancelOrder(_ context.Context, _, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

func (s *stubGateway) AccountState(context.Context) (gateway.AccountState, error) {
	return gateway.AccountState{}, nil
}

func (s *stubGateway) placedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placed)
}

func (s *stubGateway) cancelledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancelled)
}

type fixture struct {
	engine    *Engine
	gw        *stubGateway
	orders    *ledger.Ledger
	positions *position.Ledger
	risk      *risk.Engine
	metrics   *obs.Metrics
	events    *eventSink
}

type eventSink struct {
	mu     sync.Mutex
	events []schema.Event
}

func (s *eventSink) emit(e schema.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) byTopic(topic string) []schema.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.Event
	for _, e := range s.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sink := &eventSink{}
	gw := &stubGateway{}
	orders := ledger.New(sink.emit)
	positions := position.New(sink.emit)
	riskEngine := risk.NewEngine(positions, nil, sink.emit)
	riskEngine.SetLimits("BTC", schema.ModerateLimits())

	cfg := submit.DefaultConfig()
	cfg.RateLimit = 1_000_000
	pipeline := submit.New(cfg, gw, orders, nil, sink.emit)

	e := New(Config{
		Tick:       time.Hour, // ticks driven manually
		Strategies: []quote.Config{quote.DefaultConfig("BTC")},
		Orders:     orders,
		Positions:  positions,
		Risk:       riskEngine,
		Pipeline:   pipeline,
		Metrics:    obs.NewMetrics(),
		Emit:       sink.emit,
	})
	return &fixture{
		engine:    e,
		gw:        gw,
		orders:    orders,
		positions: positions,
		risk:      riskEngine,
		metrics:   e.metrics,
		events:    sink,
	}
}

func tob(bid, ask string) schema.TopOfBook {
	return schema.TopOfBook{
		Symbol:  "BTC",
		Bid:     decimal.RequireFromString(bid),
		BidSize: decimal.NewFromInt(1),
		Ask:     decimal.RequireFromString(ask),
		AskSize: decimal.NewFromInt(1),
		At:      time.Now().UTC(),
	}
}

func TestTickQuotesBothSides(t *testing.T) {
	f := newFixture(t)
	f.engine.OnTopOfBook(tob("49990", "50010"))

	f.engine.Tick(context.Background())

	// default ladder is three levels per side
	assert.Equal(t, 6, f.gw.placedCount())
	active := f.orders.ActiveOrders("BTC")
	assert.Len(t, active, 6)

	buys, sells := 0, 0
	for _, o := range active {
		switch o.Side {
		case schema.SideBuy:
			buys++
			assert.True(t, o.Price.LessThan(decimal.NewFromInt(50_000)))
		case schema.SideSell:
			sells++
			assert.True(t, o.Price.GreaterThan(decimal.NewFromInt(50_000)))
		}
	}
	assert.Equal(t, 3, buys)
	assert.Equal(t, 3, sells)
}

func TestTickWithoutMarketDataDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.engine.Tick(context.Background())
	assert.Zero(t, f.gw.placedCount())
}

func TestRefreshCancelsPreviousQuotes(t *testing.T) {
	f := newFixture(t)
	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(context.Background())
	require.Equal(t, 6, f.gw.placedCount())

	// a 1% move forces a refresh ahead of the interval
	f.engine.OnTopOfBook(tob("50490", "50510"))
	f.engine.Tick(context.Background())

	assert.Equal(t, 12, f.gw.placedCount())
	assert.Equal(t, 6, f.gw.cancelledCount())
	assert.Len(t, f.orders.ActiveOrders("BTC"), 6)
}

func TestFillUpdatesPositionAndInventory(t *testing.T) {
	f := newFixture(t)
	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(context.Background())

	var buy schema.Order
	for _, o := range f.orders.ActiveOrders("BTC") {
		if o.Side == schema.SideBuy {
			buy = o
			break
		}
	}
	require.NotEmpty(t, buy.ID)

	f.engine.OnFill(schema.Fill{
		OrderID: buy.ID,
		Symbol:  "BTC",
		Side:    schema.SideBuy,
		Price:   buy.Price,
		Size:    buy.Size,
		At:      time.Now().UTC(),
	})

	assert.Equal(t, buy.Size.String(), f.positions.Size("BTC").String())
	got, _ := f.orders.Get(buy.ID)
	assert.Equal(t, schema.OrderStatusFilled, got.Status)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().OrdersFilled)
}

func TestFillForUnknownOrderIgnored(t *testing.T) {
	f := newFixture(t)
	f.engine.OnFill(schema.Fill{
		OrderID: "nope",
		Symbol:  "BTC",
		Side:    schema.SideBuy,
		Price:   decimal.NewFromInt(50_000),
		Size:    decimal.NewFromInt(1),
	})
	assert.True(t, f.positions.Size("BTC").IsZero())
}

func TestBreakerPullsQuotes(t *testing.T) {
	f := newFixture(t)
	f.risk.RegisterBreaker(schema.CircuitBreaker{ID: "btc-vol", Symbol: "BTC", Cooldown: time.Minute})

	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(context.Background())
	require.Equal(t, 6, f.gw.placedCount())

	require.NoError(t, f.risk.TriggerCircuitBreaker("btc-vol"))
	f.engine.Tick(context.Background())

	assert.Equal(t, 6, f.gw.cancelledCount())
	assert.Empty(t, f.orders.ActiveOrders("BTC"))
	// no requoting while the breaker is active
	assert.Equal(t, 6, f.gw.placedCount())
}

func TestRiskRejectionFiltersPlacement(t *testing.T) {
	f := newFixture(t)
	f.risk.SetLimits("BTC", schema.RiskLimits{
		MaxNetPosition: decimal.RequireFromString("0.0001"),
	})

	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(context.Background())

	// every default-size order breaches the position limit
	assert.Zero(t, f.gw.placedCount())
	assert.Equal(t, uint64(6), f.metrics.Snapshot().RiskRejections)
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Start(ctx)
	assert.True(t, f.engine.Running())
	f.engine.Start(ctx) // idempotent

	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(ctx)
	require.Equal(t, 6, f.gw.placedCount())

	f.engine.Stop(ctx)
	assert.False(t, f.engine.Running())
	assert.Empty(t, f.orders.ActiveOrders("BTC"))

	statuses := f.events.byTopic(schema.TopicEngineStatus)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Payload.(schema.EngineStatus).Running)
	assert.False(t, statuses[1].Payload.(schema.EngineStatus).Running)
}

func TestOnTopOfBookUpdatesMarkPrice(t *testing.T) {
	f := newFixture(t)
	f.engine.OnTopOfBook(tob("49990", "50010"))
	f.engine.Tick(context.Background())

	var buy schema.Order
	for _, o := range f.orders.ActiveOrders("BTC") {
		if o.Side == schema.SideBuy {
			buy = o
			break
		}
	}
	f.engine.OnFill(schema.Fill{
		OrderID: buy.ID, Symbol: "BTC", Side: schema.SideBuy,
		Price: buy.Price, Size: buy.Size, At: time.Now().UTC(),
	})

	f.engine.OnTopOfBook(tob("50990", "51010"))
	p, ok := f.positions.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "51000", p.Mark.String())
	assert.True(t, p.UnrealizedPnl().IsPositive())
}
