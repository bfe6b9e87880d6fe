package store

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"mmbot/internal/bus"
	"mmbot/internal/schema"
)

// Journal persists the order, fill, pnl and risk streams from the event bus
// into postgres. Writes are asynchronous; a write failure is logged and never
// slows the trading loop.
type Journal struct {
	db *gorm.DB

	mu      sync.Mutex
	cancels []func()
	wg      sync.WaitGroup
}

// NewJournal wraps a database handle.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Start migrates the tables and subscribes to the bus.
func (j *Journal) Start(ctx context.Context, b *bus.Bus) error {
	if err := j.db.WithContext(ctx).AutoMigrate(
		&OrderRecord{}, &FillRecord{}, &PnlRecord{}, &RiskEventRecord{},
	); err != nil {
		return err
	}

	j.subscribe(ctx, b, "orders")
	j.subscribe(ctx, b, "pnl")
	j.subscribe(ctx, b, "risk")
	return nil
}

// Stop detaches from the bus and waits for in-flight writes.
func (j *Journal) Stop() {
	j.mu.Lock()
	cancels := j.cancels
	j.cancels = nil
	j.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	j.wg.Wait()
}

func (j *Journal) subscribe(ctx context.Context, b *bus.Bus, prefix string) {
	ch, cancel := b.Subscribe(prefix)
	j.mu.Lock()
	j.cancels = append(j.cancels, cancel)
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				j.write(ctx, e)
			}
		}
	}()
}

func (j *Journal) write(ctx context.Context, e schema.Event) {
	record := recordFor(e)
	if record == nil {
		return
	}
	if err := j.db.WithContext(ctx).Create(record).Error; err != nil {
		logs.Errorf("store: journal %s: %v", e.Topic, err)
	}
}

func recordFor(e schema.Event) any {
	switch payload := e.Payload.(type) {
	case schema.Order:
		return &OrderRecord{
			OrderID:       payload.ID,
			ClientOrderID: payload.ClientOrderID,
			Symbol:        payload.Symbol,
			Side:          payload.Side.String(),
			Type:          payload.Type.String(),
			Price:         payload.Price.String(),
			Size:          payload.Size.String(),
			Filled:        payload.Filled.String(),
			Status:        payload.Status.String(),
			At:            e.At,
		}
	case schema.Fill:
		return &FillRecord{
			OrderID: payload.OrderID,
			Symbol:  payload.Symbol,
			Side:    payload.Side.String(),
			Price:   payload.Price.String(),
			Size:    payload.Size.String(),
			Fee:     payload.Fee.String(),
			At:      payload.At,
		}
	case schema.PnlRealized:
		return &PnlRecord{
			Symbol: payload.Symbol,
			Amount: payload.Amount.String(),
			At:     e.At,
		}
	case schema.RiskAlert:
		return &RiskEventRecord{
			Kind:   "alert",
			Symbol: payload.Symbol,
			Detail: payload.Reason,
			At:     e.At,
		}
	case schema.BreakerTrip:
		return &RiskEventRecord{
			Kind:   "breaker",
			Symbol: payload.Symbol,
			Detail: payload.ID,
			At:     e.At,
		}
	default:
		return nil
	}
}
