package submit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"mmbot/internal/gateway"
	"mmbot/internal/ledger"
	"mmbot/internal/obs"
	"mmbot/internal/schema"
	"mmbot/pkg/exception"
)

// Config tunes the submission pipeline.
type Config struct {
	RateLimit    int
	RateWindow   time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the standard exchange limits.
func DefaultConfig() Config {
	return Config{
		RateLimit:    100,
		RateWindow:   time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// PendingOrder is an order the exchange has accepted.
type PendingOrder struct {
	Order       schema.Order
	ExchangeID  string
	SubmittedAt time.Time
}

type retryRequest struct {
	ledgerID string
	order    schema.NewOrder
	attempts int
	dueAt    time.Time
}

// Pipeline owns every outbound exchange request: the client order id
// sequence, the rate limit, and the retry queue. Retries flow through the
// same rate limited path as first attempts.
type Pipeline struct {
	cfg     Config
	gw      gateway.Gateway
	orders  *ledger.Ledger
	limiter *RateLimiter
	seq     Sequence
	metrics *obs.Metrics
	emit    func(schema.Event)
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]PendingOrder
	retries []retryRequest
}

// New creates a pipeline over the gateway and order ledger. metrics and emit
// may be nil.
func New(cfg Config, gw gateway.Gateway, orders *ledger.Ledger, metrics *obs.Metrics, emit func(schema.Event)) *Pipeline {
	if emit == nil {
		emit = func(schema.Event) {}
	}
	return &Pipeline{
		cfg:     cfg,
		gw:      gw,
		orders:  orders,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		metrics: metrics,
		emit:    emit,
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(map[string]PendingOrder),
	}
}

// Start launches the retry processor.
func (p *Pipeline) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.processRetries(ctx)
			}
		}
	}()
}

// Submit registers the order in the ledger and sends it through the rate
// limited path. Transient failures are queued for retry and reported to the
// caller; rejections are terminal immediately.
func (p *Pipeline) Submit(ctx context.Context, req schema.NewOrder) (schema.Order, error) {
	o, err := p.orders.Add(req)
	if err != nil {
		return schema.Order{}, err
	}

	if err := p.send(ctx, o.ID, req); err != nil {
		if isRetryable(err) {
			p.enqueueRetry(o.ID, req, 0)
			return o, err
		}
		p.dropOrder(o.ID, req.Symbol, err)
		return o, err
	}

	o, _ = p.orders.Get(o.ID)
	return o, nil
}

// send performs one rate limited place attempt.
func (p *Pipeline) send(ctx context.Context, ledgerID string, req schema.NewOrder) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	clientID := p.seq.Next()
	start := time.Now()
	exchangeID, err := p.gw.PlaceOrder(ctx, req, clientID)
	p.metrics.ObserveSubmit(time.Since(start))
	if err != nil {
		return err
	}

	o, err := p.orders.MarkSubmitted(ledgerID, clientID)
	if err != nil {
		// cancelled while in flight, undo on the exchange best effort
		logs.Warnf("submit: order %s finished before ack: %v", ledgerID, err)
		if cancelErr := p.gw.CancelOrder(ctx, req.Symbol, exchangeID); cancelErr != nil {
			logs.Errorf("submit: undo cancel %s: %v", exchangeID, cancelErr)
		}
		return nil
	}

	p.mu.Lock()
	p.pending[ledgerID] = PendingOrder{Order: o, ExchangeID: exchangeID, SubmittedAt: p.now()}
	p.mu.Unlock()
	return nil
}

// EnqueueRetry schedules a resubmission after the retry delay.
func (p *Pipeline) EnqueueRetry(ledgerID string, req schema.NewOrder) {
	p.enqueueRetry(ledgerID, req, 0)
}

func (p *Pipeline) enqueueRetry(ledgerID string, req schema.NewOrder, attempts int) {
	p.metrics.IncOrderRetried()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, retryRequest{
		ledgerID: ledgerID,
		order:    req,
		attempts: attempts,
		dueAt:    p.now().Add(p.cfg.RetryDelay),
	})
}

func (p *Pipeline) processRetries(ctx context.Context) {
	now := p.now()
	p.mu.Lock()
	var due []retryRequest
	rest := p.retries[:0]
	for _, r := range p.retries {
		if !r.dueAt.After(now) {
			due = append(due, r)
		} else {
			rest = append(rest, r)
		}
	}
	p.retries = rest
	p.mu.Unlock()

	for _, r := range due {
		if r.attempts >= p.cfg.MaxRetries {
			p.dropOrder(r.ledgerID, r.order.Symbol, exception.ErrOrderRetriesExhausted)
			continue
		}
		err := p.send(ctx, r.ledgerID, r.order)
		if err == nil {
			continue
		}
		if isRetryable(err) {
			p.enqueueRetry(r.ledgerID, r.order, r.attempts+1)
			continue
		}
		p.dropOrder(r.ledgerID, r.order.Symbol, err)
	}
}

// dropOrder terminally rejects an order. Exactly one error event is published.
func (p *Pipeline) dropOrder(ledgerID, symbol string, cause error) {
	if _, err := p.orders.Update(ledgerID, schema.OrderStatusRejected, decimal.Zero); err != nil &&
		!errors.Is(err, ledger.ErrInvalidTransition) {
		logs.Errorf("submit: reject %s: %v", ledgerID, err)
	}
	p.metrics.IncOrderRejected()
	logs.Errorf("submit: order %s dropped: %v", ledgerID, cause)
	p.emit(schema.EngineErrorEvent(schema.EngineError{
		Stage:  "submit",
		Symbol: symbol,
		Reason: cause.Error(),
	}))
}

// Cancel marks the order cancelled in the ledger and flushes queued cancels
// to the exchange through the rate limited path. Cancel failures are logged,
// not retried.
func (p *Pipeline) Cancel(ctx context.Context, ledgerID string) error {
	if _, err := p.orders.RequestCancel(ledgerID); err != nil {
		if !errors.Is(err, ledger.ErrInvalidTransition) {
			return err
		}
	} else {
		p.metrics.IncOrderCancelled()
	}

	// a cancelled order must not come back through the retry queue
	p.mu.Lock()
	rest := p.retries[:0]
	for _, r := range p.retries {
		if r.ledgerID != ledgerID {
			rest = append(rest, r)
		}
	}
	p.retries = rest
	p.mu.Unlock()

	return p.FlushCancels(ctx)
}

// FlushCancels executes every cancel the ledger has queued.
func (p *Pipeline) FlushCancels(ctx context.Context) error {
	var firstErr error
	for _, a := range p.orders.DrainPendingActions() {
		if a.Type != schema.ActionCancel {
			continue
		}
		if err := p.cancelOnExchange(ctx, a.OrderID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) cancelOnExchange(ctx context.Context, ledgerID string) error {
	p.mu.Lock()
	pending, ok := p.pending[ledgerID]
	delete(p.pending, ledgerID)
	p.mu.Unlock()
	if !ok {
		// never reached the exchange, nothing to undo there
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := p.gw.CancelOrder(ctx, pending.Order.Symbol, pending.ExchangeID); err != nil {
		logs.Errorf("submit: cancel %s on exchange: %v", pending.ExchangeID, err)
		return err
	}
	return nil
}

// CancelAll cancels every active order, optionally filtered by symbol, and
// returns how many exchange cancels failed.
func (p *Pipeline) CancelAll(ctx context.Context, symbol string) int {
	failed := 0
	for _, o := range p.orders.ActiveOrders(symbol) {
		if err := p.Cancel(ctx, o.ID); err != nil {
			failed++
		}
	}
	return failed
}

// Execute runs a batch of strategy actions in order, cancels ahead of places.
// Per-action failures are logged and do not stop the batch.
func (p *Pipeline) Execute(ctx context.Context, actions []schema.OrderAction) []schema.Order {
	placed := make([]schema.Order, 0, len(actions))
	for _, a := range actions {
		switch a.Type {
		case schema.ActionCancel:
			if err := p.Cancel(ctx, a.OrderID); err != nil {
				logs.Warnf("submit: cancel %s: %v", a.OrderID, err)
			}
		case schema.ActionPlace:
			o, err := p.Submit(ctx, a.Order)
			if err != nil {
				logs.Warnf("submit: place %s %s: %v", a.Order.Symbol, a.Order.Side, err)
				continue
			}
			placed = append(placed, o)
		}
	}
	return placed
}

// Pending returns the exchange-acknowledged order for a ledger id.
func (p *Pipeline) Pending(ledgerID string) (PendingOrder, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	po, ok := p.pending[ledgerID]
	return po, ok
}

// ResolveExchangeOrder maps an exchange order id back to the ledger id.
func (p *Pipeline) ResolveExchangeOrder(exchangeID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ledgerID, po := range p.pending {
		if po.ExchangeID == exchangeID {
			return ledgerID, true
		}
	}
	return "", false
}

// RetryBacklog returns the number of queued retries.
func (p *Pipeline) RetryBacklog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.retries)
}

func isRetryable(err error) bool {
	return errors.Is(err, exception.ErrNetwork) ||
		errors.Is(err, exception.ErrTimeout) ||
		errors.Is(err, exception.ErrRateLimited) ||
		errors.Is(err, exception.ErrParse)
}
