package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmbot/internal/schema"
)

func limitOrder(symbol string, side schema.Side, price, size string) schema.NewOrder {
	return schema.NewOrder{
		Symbol: symbol,
		Side:   side,
		Type:   schema.OrderTypeLimit,
		Price:  decimal.RequireFromString(price),
		Size:   decimal.RequireFromString(size),
	}
}

func TestLedgerAddValidates(t *testing.T) {
	l := New(nil)

	_, err := l.Add(schema.NewOrder{})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = l.Add(limitOrder("BTC", schema.SideBuy, "0", "1"))
	assert.ErrorIs(t, err, ErrInvalidOrder)

	// post only rests on the book, it needs a price too
	postOnly := limitOrder("BTC", schema.SideBuy, "0", "1")
	postOnly.Type = schema.OrderTypePostOnly
	_, err = l.Add(postOnly)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	o, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "1"))
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusPending, o.Status)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerFilledPlusRemaining(t *testing.T) {
	l := New(nil)
	o, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "10"))
	require.NoError(t, err)

	o, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("3"))
	require.NoError(t, err)
	assert.True(t, o.Filled.Add(o.Remaining()).Equal(o.Size))

	o, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("7.5"))
	require.NoError(t, err)
	assert.True(t, o.Remaining().Equal(decimal.RequireFromString("2.5")))

	o, err = l.Update(o.ID, schema.OrderStatusFilled, o.Size)
	require.NoError(t, err)
	assert.True(t, o.Remaining().IsZero())
}

func TestLedgerRejectsRegressions(t *testing.T) {
	l := New(nil)
	o, err := l.Add(limitOrder("BTC", schema.SideSell, "100", "10"))
	require.NoError(t, err)

	_, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("4"))
	require.NoError(t, err)

	// filled cannot shrink
	_, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("2"))
	assert.ErrorIs(t, err, ErrInvalidFill)

	// filled cannot exceed size
	_, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("11"))
	assert.ErrorIs(t, err, ErrInvalidFill)

	_, err = l.Update(o.ID, schema.OrderStatusFilled, decimal.RequireFromString("10"))
	require.NoError(t, err)

	// terminal states absorb every later update
	_, err = l.Update(o.ID, schema.OrderStatusCancelled, decimal.RequireFromString("10"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLedgerStatusNeverRegresses(t *testing.T) {
	l := New(nil)
	o, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "10"))
	require.NoError(t, err)
	_, err = l.MarkSubmitted(o.ID, 1)
	require.NoError(t, err)
	_, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.RequireFromString("4"))
	require.NoError(t, err)

	// a stale submitted notification must not roll the status back
	_, err = l.Update(o.ID, schema.OrderStatusSubmitted, decimal.RequireFromString("4"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = l.Update(o.ID, schema.OrderStatusPending, decimal.RequireFromString("4"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, ok := l.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, schema.OrderStatusPartialFilled, got.Status)
	assert.True(t, got.Filled.Equal(decimal.RequireFromString("4")))
}

func TestLedgerUnknownOrderIgnored(t *testing.T) {
	l := New(nil)
	_, err := l.Update("missing", schema.OrderStatusFilled, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestLedgerRequestCancelQueuesAction(t *testing.T) {
	l := New(nil)
	o, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "1"))
	require.NoError(t, err)

	cancelled, err := l.RequestCancel(o.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusCancelled, cancelled.Status)

	actions := l.DrainPendingActions()
	require.Len(t, actions, 1)
	assert.Equal(t, schema.ActionCancel, actions[0].Type)
	assert.Equal(t, o.ID, actions[0].OrderID)
	assert.Nil(t, l.DrainPendingActions())

	// cancelled order rejects the late fill notification
	_, err = l.Update(o.ID, schema.OrderStatusFilled, o.Size)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLedgerCancelAllBySymbol(t *testing.T) {
	l := New(nil)
	btc, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "1"))
	require.NoError(t, err)
	_, err = l.Add(limitOrder("ETH", schema.SideSell, "50", "2"))
	require.NoError(t, err)

	cancelled := l.CancelAll("BTC")
	require.Len(t, cancelled, 1)
	assert.Equal(t, btc.ID, cancelled[0].ID)
	assert.Len(t, l.ActiveOrders(""), 1)

	cancelled = l.CancelAll("")
	assert.Len(t, cancelled, 1)
	assert.Empty(t, l.ActiveOrders(""))
}

func TestLedgerExposure(t *testing.T) {
	l := New(nil)
	buy, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "2"))
	require.NoError(t, err)
	_, err = l.Add(limitOrder("BTC", schema.SideSell, "110", "1"))
	require.NoError(t, err)
	_, err = l.Add(limitOrder("ETH", schema.SideBuy, "50", "4"))
	require.NoError(t, err)

	_, err = l.Update(buy.ID, schema.OrderStatusPartialFilled, decimal.NewFromInt(1))
	require.NoError(t, err)

	buyExp, sellExp := l.Exposure("BTC")
	assert.True(t, buyExp.Equal(decimal.NewFromInt(100)), "buy exposure = %v", buyExp)
	assert.True(t, sellExp.Equal(decimal.NewFromInt(110)), "sell exposure = %v", sellExp)
}

func TestLedgerEmitsEvents(t *testing.T) {
	var topics []string
	l := New(func(e schema.Event) { topics = append(topics, e.Topic) })

	o, err := l.Add(limitOrder("BTC", schema.SideBuy, "100", "2"))
	require.NoError(t, err)
	_, err = l.Update(o.ID, schema.OrderStatusPartialFilled, decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = l.RequestCancel(o.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		schema.TopicOrderPlaced,
		schema.TopicOrderUpdated,
		schema.TopicOrderFilled,
		schema.TopicOrderCancelled,
	}, topics)
}
