// Package mock is an in-memory paper broker for dry runs and local
// development. Orders fill instantly at their own price; the portfolio is
// marked to those fills.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
	"tradeguard/internal/logger"
)

type Gateway struct {
	mu        sync.Mutex
	portfolio domain.Portfolio
	orders    []domain.Order
	updates   chan domain.OrderUpdate
	prices    map[string]decimal.Decimal
}

func New(startingCash decimal.Decimal) *Gateway {
	return &Gateway{
		portfolio: domain.Portfolio{
			Cash:      startingCash,
			Positions: make(map[string]domain.Position),
		},
		updates: make(chan domain.OrderUpdate, 128),
		prices:  make(map[string]decimal.Decimal),
	}
}

// SetPrice seeds the quote used by GetPrices.
func (g *Gateway) SetPrice(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	g.prices[domain.NormalizeSymbol(symbol)] = price
	g.mu.Unlock()
}

// Execute fills the order immediately and applies it to the paper portfolio.
func (g *Gateway) Execute(ctx context.Context, order domain.Order) error {
	g.mu.Lock()
	g.orders = append(g.orders, order)
	g.applyFill(order)
	g.mu.Unlock()

	logger.Infof("mock: filled %s %s %s at %s", order.Side, order.Quantity, order.Symbol, order.Price)
	update := domain.OrderUpdate{
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Status:         domain.OrderStatusFilled,
		FilledQty:      order.Quantity,
		FilledAvgPrice: order.Price,
		Timestamp:      time.Now(),
	}
	select {
	case g.updates <- update:
	default:
		logger.Warnf("mock: update channel full, dropped fill for %s", order.Symbol)
	}
	return nil
}

func (g *Gateway) applyFill(order domain.Order) {
	key := domain.NormalizeSymbol(order.Symbol)
	pos := g.portfolio.Positions[key]
	pos.Symbol = key
	notional := order.Price.Mul(order.Quantity)

	if order.Side == domain.SideBuy {
		if pos.OpenedAt.IsZero() {
			pos.OpenedAt = time.Now()
		}
		newQty := pos.Quantity.Add(order.Quantity)
		if newQty.IsPositive() {
			cost := pos.AveragePrice.Mul(pos.Quantity).Add(notional)
			pos.AveragePrice = cost.Div(newQty)
		}
		pos.Quantity = newQty
		g.portfolio.Cash = g.portfolio.Cash.Sub(notional)
	} else {
		pos.Quantity = pos.Quantity.Sub(order.Quantity)
		g.portfolio.Cash = g.portfolio.Cash.Add(notional)
	}

	if pos.Quantity.IsZero() {
		delete(g.portfolio.Positions, key)
		return
	}
	g.portfolio.Positions[key] = pos
}

func (g *Gateway) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.portfolio.Clone(), nil
}

func (g *Gateway) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return nil, nil
}

func (g *Gateway) GetTodayOrders(ctx context.Context) ([]domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Order, len(g.orders))
	copy(out, g.orders)
	return out, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error { return nil }
func (g *Gateway) CancelAllOrders(ctx context.Context) error             { return nil }

func (g *Gateway) SubscribeOrderUpdates(ctx context.Context) (<-chan domain.OrderUpdate, error) {
	return g.updates, nil
}

// GetPrices serves seeded quotes, falling back to position entry prices.
func (g *Gateway) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		key := domain.NormalizeSymbol(s)
		if price, ok := g.prices[key]; ok {
			out[key] = price
			continue
		}
		if pos, ok := g.portfolio.Positions[key]; ok && pos.AveragePrice.IsPositive() {
			out[key] = pos.AveragePrice
		}
	}
	return out, nil
}
