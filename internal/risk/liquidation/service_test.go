package liquidation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/domain"
	"tradeguard/internal/market"
)

type recordingSink struct {
	mu     sync.Mutex
	orders []domain.Order
	fail   map[string]error
}

func (r *recordingSink) Execute(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[order.Symbol]; err != nil {
		return err
	}
	r.orders = append(r.orders, order)
	return nil
}

func testPortfolio() domain.Portfolio {
	return domain.Portfolio{
		Cash: decimal.RequireFromString("1000"),
		Positions: map[string]domain.Position{
			"AAPL": {Symbol: "AAPL", Quantity: decimal.RequireFromString("10"), AveragePrice: decimal.RequireFromString("100")},
			"MSFT": {Symbol: "MSFT", Quantity: decimal.RequireFromString("-5"), AveragePrice: decimal.RequireFromString("200")},
			"FLAT": {Symbol: "FLAT", Quantity: decimal.Zero},
		},
	}
}

func orderFor(t *testing.T, orders []domain.Order, symbol string) domain.Order {
	t.Helper()
	for _, o := range orders {
		if o.Symbol == symbol {
			return o
		}
	}
	t.Fatalf("no order for %s", symbol)
	return domain.Order{}
}

func TestLiquidateUsesMidWithFreshQuotes(t *testing.T) {
	spreads := market.NewSpreadCache()
	spreads.Update("AAPL", decimal.RequireFromString("99"), decimal.RequireFromString("101"))
	spreads.Update("MSFT", decimal.RequireFromString("199"), decimal.RequireFromString("201"))

	sink := &recordingSink{}
	svc := NewService(spreads, sink, 10*time.Second)

	sent := svc.LiquidatePortfolio(context.Background(), "test", testPortfolio(), false)
	require.Len(t, sent, 2)

	long := orderFor(t, sent, "AAPL")
	assert.Equal(t, domain.SideSell, long.Side)
	assert.Equal(t, domain.OrderTypeLimit, long.OrderType)
	assert.True(t, long.Price.Equal(decimal.RequireFromString("100")))
	assert.True(t, long.Quantity.Equal(decimal.RequireFromString("10")))

	short := orderFor(t, sent, "MSFT")
	assert.Equal(t, domain.SideBuy, short.Side)
	assert.Equal(t, domain.OrderTypeLimit, short.OrderType)
	assert.True(t, short.Price.Equal(decimal.RequireFromString("200")))
	assert.True(t, short.Quantity.Equal(decimal.RequireFromString("5")))
}

func TestLiquidateSkipsFlatPositions(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(market.NewSpreadCache(), sink, 10*time.Second)

	sent := svc.LiquidatePortfolio(context.Background(), "test", testPortfolio(), false)
	for _, o := range sent {
		assert.NotEqual(t, "FLAT", o.Symbol)
	}
}

func TestLiquidateFallsBackToMarketOnMissingQuote(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(market.NewSpreadCache(), sink, 10*time.Second)

	sent := svc.LiquidatePortfolio(context.Background(), "test", testPortfolio(), false)
	require.Len(t, sent, 2)
	for _, o := range sent {
		assert.Equal(t, domain.OrderTypeMarket, o.OrderType)
	}
}

func TestPanicModeIgnoresFreshQuotes(t *testing.T) {
	spreads := market.NewSpreadCache()
	spreads.Update("AAPL", decimal.RequireFromString("99"), decimal.RequireFromString("101"))

	sink := &recordingSink{}
	svc := NewService(spreads, sink, 10*time.Second)

	sent := svc.LiquidatePortfolio(context.Background(), "panic", testPortfolio(), true)
	for _, o := range sent {
		assert.Equal(t, domain.OrderTypeMarket, o.OrderType)
	}
}

func TestLiquidateContinuesPastFailures(t *testing.T) {
	sink := &recordingSink{fail: map[string]error{"AAPL": errors.New("rejected")}}
	svc := NewService(market.NewSpreadCache(), sink, 10*time.Second)

	sent := svc.LiquidatePortfolio(context.Background(), "test", testPortfolio(), false)
	require.Len(t, sent, 1)
	assert.Equal(t, "MSFT", sent[0].Symbol)
}
