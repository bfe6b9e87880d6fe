package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"mmbot/internal/book"
	"mmbot/internal/ledger"
	"mmbot/internal/obs"
	"mmbot/internal/position"
	"mmbot/internal/quote"
	"mmbot/internal/risk"
	"mmbot/internal/schema"
	"mmbot/internal/submit"
)

const _defaultTick = 100 * time.Millisecond

// Config wires the engine's collaborators. Strategies defines the quoted
// symbols; every other component is shared.
type Config struct {
	Tick       time.Duration
	Strategies []quote.Config
	Orders     *ledger.Ledger
	Positions  *position.Ledger
	Risk       *risk.Engine
	Pipeline   *submit.Pipeline
	Metrics    *obs.Metrics
	Emit       func(schema.Event)
}

// Engine runs the quoting loop: market data in, risk checked quote ladders
// out. One tick handles every configured symbol; a failure on one symbol
// never stops the others.
type Engine struct {
	tick      time.Duration
	books     map[string]*book.Book
	quotes    map[string]*quote.Generator
	symbols   []string
	orders    *ledger.Ledger
	positions *position.Ledger
	risk      *risk.Engine
	pipeline  *submit.Pipeline
	metrics   *obs.Metrics
	emit      func(schema.Event)
	now       func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped engine.
func New(cfg Config) *Engine {
	if cfg.Tick <= 0 {
		cfg.Tick = _defaultTick
	}
	if cfg.Emit == nil {
		cfg.Emit = func(schema.Event) {}
	}

	e := &Engine{
		tick:      cfg.Tick,
		books:     make(map[string]*book.Book, len(cfg.Strategies)),
		quotes:    make(map[string]*quote.Generator, len(cfg.Strategies)),
		orders:    cfg.Orders,
		positions: cfg.Positions,
		risk:      cfg.Risk,
		pipeline:  cfg.Pipeline,
		metrics:   cfg.Metrics,
		emit:      cfg.Emit,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, s := range cfg.Strategies {
		e.books[s.Symbol] = book.New(s.Symbol)
		e.quotes[s.Symbol] = quote.New(s)
		e.symbols = append(e.symbols, s.Symbol)
	}
	return e
}

// Start launches the tick loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.emit(schema.EngineStatusEvent(schema.EngineStatus{Running: true, Detail: "started"}))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := e.now()
				e.Tick(ctx)
				e.metrics.ObserveTick(e.now().Sub(start))
			}
		}
	}()
}

// Stop halts the tick loop and cancels every resting order best effort.
// Cancel failures are logged, not retried.
func (e *Engine) Stop(ctx context.Context) {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.cancel()
	e.wg.Wait()

	for _, symbol := range e.symbols {
		e.quotes[symbol].Disable()
		if failed := e.pipeline.CancelAll(ctx, symbol); failed > 0 {
			logs.Errorf("engine: %d cancels failed for %s on shutdown", failed, symbol)
		}
	}
	e.emit(schema.EngineStatusEvent(schema.EngineStatus{Running: false, Detail: "stopped"}))
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// OnTopOfBook folds a market data snapshot into the book, mark prices and
// risk state for its symbol.
func (e *Engine) OnTopOfBook(t schema.TopOfBook) {
	b, ok := e.books[t.Symbol]
	if !ok {
		return
	}
	b.ApplyTopOfBook(t)

	snap := b.Snapshot()
	if !snap.Valid {
		return
	}
	e.positions.UpdateMarkPrice(t.Symbol, snap.Mid)

	spreadBps, _ := b.SpreadBps()
	e.risk.ObserveMarket(t.Symbol, spreadBps, snap.Mid)

	e.emit(schema.TopOfBookEvent(t))
}

// OnFill applies an execution to the order and position ledgers and feeds
// realized pnl back into risk.
func (e *Engine) OnFill(f schema.Fill) {
	o, ok := e.orders.Get(f.OrderID)
	if !ok {
		logs.Warnf("engine: fill for unknown order %s", f.OrderID)
		return
	}

	filled := o.Filled.Add(f.Size)
	status := schema.OrderStatusPartialFilled
	if filled.GreaterThanOrEqual(o.Size) {
		status = schema.OrderStatusFilled
	}
	if _, err := e.orders.Update(f.OrderID, status, filled); err != nil {
		logs.Errorf("engine: apply fill %s: %v", f.OrderID, err)
		return
	}

	_, realized, err := e.positions.ProcessFill(f)
	if err != nil {
		logs.Errorf("engine: position fill %s: %v", f.OrderID, err)
		return
	}
	e.risk.UpdatePnl(f.Symbol, realized)
	e.risk.UpdateTradeCount(f.Symbol)
	e.metrics.IncOrderFilled()

	if g, ok := e.quotes[f.Symbol]; ok {
		g.SetInventory(e.positions.Size(f.Symbol))
	}
}

// Tick runs one quote cycle over every symbol.
func (e *Engine) Tick(ctx context.Context) {
	for _, symbol := range e.symbols {
		e.tickSymbol(ctx, symbol)
	}
}

func (e *Engine) tickSymbol(ctx context.Context, symbol string) {
	g := e.quotes[symbol]
	snap := e.books[symbol].Snapshot()
	if !snap.Valid {
		return
	}

	if e.risk.IsCircuitBreakerActive(symbol) {
		// pull quotes while the breaker cools down
		if len(g.ActiveQuotes()) > 0 {
			if failed := e.pipeline.CancelAll(ctx, symbol); failed > 0 {
				logs.Warnf("engine: %d breaker cancels failed for %s", failed, symbol)
			}
			g.Untrack()
		}
		return
	}

	g.SetInventory(e.positions.Size(symbol))
	actions := g.Refresh(snap.Mid, e.now())
	if len(actions) == 0 {
		return
	}

	allowed := actions[:0]
	for _, a := range actions {
		if a.Type == schema.ActionPlace {
			if err := e.risk.CheckOrderRisk(a.Order); err != nil {
				e.metrics.IncRiskRejection()
				continue
			}
		}
		allowed = append(allowed, a)
	}

	placed := e.pipeline.Execute(ctx, allowed)
	ids := make([]string, 0, len(placed))
	for _, o := range placed {
		ids = append(ids, o.ID)
		e.metrics.IncOrderPlaced()
	}
	g.Track(ids...)
}

// Generator exposes one symbol's quote generator, mainly for ops toggles.
func (e *Engine) Generator(symbol string) (*quote.Generator, bool) {
	g, ok := e.quotes[symbol]
	return g, ok
}

// Book exposes one symbol's order book view.
func (e *Engine) Book(symbol string) (*book.Book, bool) {
	b, ok := e.books[symbol]
	return b, ok
}

// MarkToMarket returns total pnl across every symbol.
func (e *Engine) MarkToMarket() decimal.Decimal {
	return e.positions.TotalPnl()
}
