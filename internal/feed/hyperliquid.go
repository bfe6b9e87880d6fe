package feed

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"mmbot/internal/obs"
	"mmbot/internal/schema"
)

const (
	_hyperliquidWsUrl    = "wss://api.hyperliquid.xyz/ws"
	_hyperliquidWsUrlDev = "wss://api.hyperliquid-testnet.xyz/ws"
)

// HyperliquidPub streams deduplicated top-of-book snapshots.
type HyperliquidPub struct {
	wss   *ws.WebSocket
	cache *TobCache
}

// NewHyperliquidPub connects to the public market data stream. An empty url
// uses production; metrics may be nil.
func NewHyperliquidPub(ctx context.Context, url string, metrics *obs.Metrics) *HyperliquidPub {
	if url == "" {
		url = _hyperliquidWsUrl
	}
	return &HyperliquidPub{
		wss:   ws.New(ctx, url),
		cache: NewTobCache(_defaultTobCacheCapacity, metrics),
	}
}

func (repo *HyperliquidPub) Len() int {
	return repo.wss.Len()
}

func (repo *HyperliquidPub) Close() {
	repo.wss.Close()
}

func (repo *HyperliquidPub) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type hyperliquidSubscribeRequest struct {
	Method       string                  `json:"method"`
	Subscription hyperliquidSubscription `json:"subscription"`
}

type hyperliquidSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

type hyperliquidSubscribeResponse struct {
	Channel string `json:"channel"`
	Data    struct {
		Subscription hyperliquidSubscription `json:"subscription"`
	} `json:"data"`
}

// SubscribeBbo subscribes the best bid/offer stream for one symbol.
func (repo *HyperliquidPub) SubscribeBbo(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := hyperliquidSubscribeRequest{
				Method: "subscribe",
				Subscription: hyperliquidSubscription{
					Type: "bbo",
					Coin: symbol,
				},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp hyperliquidSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}
			if resp.Channel != "subscriptionResponse" {
				return false, nil
			}
			if resp.Data.Subscription.Coin != symbol {
				return false, nil
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// SubscribeUserFills subscribes the account's execution stream.
func (repo *HyperliquidPub) SubscribeUserFills(ctx context.Context, user string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := hyperliquidSubscribeRequest{
				Method: "subscribe",
				Subscription: hyperliquidSubscription{
					Type: "userFills",
					User: user,
				},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp hyperliquidSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}
			if resp.Channel != "subscriptionResponse" {
				return false, nil
			}
			if resp.Data.Subscription.Type != "userFills" {
				return false, nil
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type hyperliquidBboLevel struct {
	Px decimal.Decimal `json:"px"`
	Sz decimal.Decimal `json:"sz"`
}

type hyperliquidBbo struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin string                 `json:"coin"`
		Time int64                  `json:"time"`
		Bbo  [2]hyperliquidBboLevel `json:"bbo"`
	} `json:"data"`
}

// ExchangeFill is one execution from the account stream, keyed by the
// exchange order id.
type ExchangeFill struct {
	ExchangeOrderID string
	Symbol          string
	Side            schema.Side
	Price           decimal.Decimal
	Size            decimal.Decimal
	Fee             decimal.Decimal
	At              time.Time
}

type hyperliquidUserFills struct {
	Channel string `json:"channel"`
	Data    struct {
		IsSnapshot bool `json:"isSnapshot"`
		Fills      []struct {
			Coin string          `json:"coin"`
			Px   decimal.Decimal `json:"px"`
			Sz   decimal.Decimal `json:"sz"`
			Side string          `json:"side"`
			Time int64           `json:"time"`
			Fee  decimal.Decimal `json:"fee"`
			Oid  uint64          `json:"oid"`
		} `json:"fills"`
	} `json:"data"`
}

// ObserveFills delivers account executions to the handler. The initial
// snapshot batch is skipped, only live fills flow.
func (repo *HyperliquidPub) ObserveFills(ctx context.Context, handler func(f ExchangeFill)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[hyperliquidUserFills](m)
				if !ok || resp.Channel != "userFills" || resp.Data.IsSnapshot {
					continue
				}

				for _, f := range resp.Data.Fills {
					side := schema.SideBuy
					if f.Side == "A" {
						side = schema.SideSell
					}
					handler(ExchangeFill{
						ExchangeOrderID: strconv.FormatUint(f.Oid, 10),
						Symbol:          f.Coin,
						Side:            side,
						Price:           f.Px,
						Size:            f.Sz,
						Fee:             f.Fee,
						At:              time.UnixMilli(f.Time).UTC(),
					})
				}
			}
		}
	}()

	return cancel
}

// ObserveTopOfBook delivers deduplicated snapshots to the handler. Duplicate
// snapshots inside the cache window are dropped.
func (repo *HyperliquidPub) ObserveTopOfBook(ctx context.Context, handler func(t schema.TopOfBook)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[hyperliquidBbo](m)
				if !ok || resp.Channel != "bbo" {
					continue
				}

				tob := schema.TopOfBook{
					Symbol:  resp.Data.Coin,
					Bid:     resp.Data.Bbo[0].Px,
					BidSize: resp.Data.Bbo[0].Sz,
					Ask:     resp.Data.Bbo[1].Px,
					AskSize: resp.Data.Bbo[1].Sz,
					At:      time.UnixMilli(resp.Data.Time).UTC(),
				}
				if tob.IsCrossed() {
					logs.Warnf("feed: crossed book for %s dropped", tob.Symbol)
					continue
				}
				if repo.cache.Insert(tob) == CacheDuplicate {
					continue
				}

				handler(tob)
			}
		}
	}()

	return cancel
}
