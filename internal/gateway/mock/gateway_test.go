package mock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/domain"
)

func TestBuyThenSellRoundTrip(t *testing.T) {
	g := New(decimal.RequireFromString("10000"))
	ctx := context.Background()

	buy := domain.NewOrder("BTCUSDT", domain.SideBuy, decimal.RequireFromString("100"), decimal.RequireFromString("10"), domain.OrderTypeLimit)
	require.NoError(t, g.Execute(ctx, buy))

	p, err := g.GetPortfolio(ctx)
	require.NoError(t, err)
	assert.True(t, p.Cash.Equal(decimal.RequireFromString("9000")))
	pos, ok := p.FindPosition("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.Quantity.Equal(decimal.RequireFromString("10")))
	assert.True(t, pos.AveragePrice.Equal(decimal.RequireFromString("100")))

	sell := domain.NewOrder("BTCUSDT", domain.SideSell, decimal.RequireFromString("110"), decimal.RequireFromString("10"), domain.OrderTypeLimit)
	require.NoError(t, g.Execute(ctx, sell))

	p, err = g.GetPortfolio(ctx)
	require.NoError(t, err)
	assert.True(t, p.Cash.Equal(decimal.RequireFromString("10100")))
	_, ok = p.FindPosition("BTCUSDT")
	assert.False(t, ok)
}

func TestAveragePriceAccumulates(t *testing.T) {
	g := New(decimal.RequireFromString("10000"))
	ctx := context.Background()

	require.NoError(t, g.Execute(ctx, domain.NewOrder("ETHUSDT", domain.SideBuy,
		decimal.RequireFromString("100"), decimal.RequireFromString("10"), domain.OrderTypeLimit)))
	require.NoError(t, g.Execute(ctx, domain.NewOrder("ETHUSDT", domain.SideBuy,
		decimal.RequireFromString("200"), decimal.RequireFromString("10"), domain.OrderTypeLimit)))

	p, _ := g.GetPortfolio(ctx)
	pos, ok := p.FindPosition("ETHUSDT")
	require.True(t, ok)
	assert.True(t, pos.AveragePrice.Equal(decimal.RequireFromString("150")))
}

func TestFillsArriveOnUpdateStream(t *testing.T) {
	g := New(decimal.RequireFromString("10000"))
	ctx := context.Background()
	updates, err := g.SubscribeOrderUpdates(ctx)
	require.NoError(t, err)

	order := domain.NewOrder("BTCUSDT", domain.SideBuy, decimal.RequireFromString("100"), decimal.RequireFromString("1"), domain.OrderTypeLimit)
	require.NoError(t, g.Execute(ctx, order))

	update := <-updates
	assert.Equal(t, order.ID, update.OrderID)
	assert.Equal(t, domain.OrderStatusFilled, update.Status)
	assert.True(t, update.FilledAvgPrice.Equal(order.Price))
}

func TestGetPricesPrefersSeededQuotes(t *testing.T) {
	g := New(decimal.RequireFromString("10000"))
	g.SetPrice("BTC/USDT", decimal.RequireFromString("50000"))

	prices, err := g.GetPrices(context.Background(), []string{"BTCUSDT", "UNKNOWN"})
	require.NoError(t, err)
	assert.True(t, prices["BTCUSDT"].Equal(decimal.RequireFromString("50000")))
	_, ok := prices["UNKNOWN"]
	assert.False(t, ok)
}
