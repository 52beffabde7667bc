// Package liquidation flattens every open position when the circuit breaker
// trips or an operator pulls the plug.
package liquidation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
	"tradeguard/internal/logger"
	"tradeguard/internal/market"
)

// SpreadSource exposes the quote data liquidation prices against.
type SpreadSource interface {
	GetSpreadData(symbol string) (market.SpreadData, bool)
	IsStale(symbol string, threshold time.Duration) bool
}

// OrderSink receives the exit orders. In production this is the execution
// gateway; in tests, a recorder.
type OrderSink interface {
	Execute(ctx context.Context, order domain.Order) error
}

// Service turns an open portfolio into a stream of exit orders. With a fresh
// quote it exits passively at the mid; with stale or missing quotes, or in
// panic mode, it pays the spread with a market order to guarantee the exit.
type Service struct {
	spreads   SpreadSource
	sink      OrderSink
	staleness time.Duration
}

func NewService(spreads SpreadSource, sink OrderSink, staleness time.Duration) *Service {
	return &Service{spreads: spreads, sink: sink, staleness: staleness}
}

// LiquidatePortfolio submits a full-quantity exit for every non-flat
// position. Individual submission failures are logged and skipped so one bad
// symbol cannot strand the rest of the book. Returns the orders it sent.
func (s *Service) LiquidatePortfolio(ctx context.Context, reason string, portfolio domain.Portfolio, panicMode bool) []domain.Order {
	logger.Warnf("liquidation: flattening %d positions (%s, panic=%t)", len(portfolio.Positions), reason, panicMode)

	var sent []domain.Order
	for _, pos := range portfolio.Positions {
		if pos.Quantity.IsZero() {
			continue
		}
		order := s.exitOrder(pos, panicMode)
		if err := s.sink.Execute(ctx, order); err != nil {
			logger.Errorf("liquidation: exit for %s failed: %v", pos.Symbol, err)
			continue
		}
		logger.Infof("liquidation: %s %s %s as %s at %s", order.Side, order.Quantity, order.Symbol, order.OrderType, order.Price)
		sent = append(sent, order)
	}
	return sent
}

// exitOrder chooses side and pricing for one position. Short positions
// (negative quantity) are bought back.
func (s *Service) exitOrder(pos domain.Position, panicMode bool) domain.Order {
	side := domain.SideSell
	if pos.Quantity.IsNegative() {
		side = domain.SideBuy
	}
	qty := pos.Quantity.Abs()

	if !panicMode && s.spreads != nil && !s.spreads.IsStale(pos.Symbol, s.staleness) {
		if data, ok := s.spreads.GetSpreadData(pos.Symbol); ok && data.Mid().IsPositive() {
			return domain.NewOrder(pos.Symbol, side, data.Mid(), qty, domain.OrderTypeLimit)
		}
	}
	return domain.NewOrder(pos.Symbol, side, decimal.Zero, qty, domain.OrderTypeMarket)
}
