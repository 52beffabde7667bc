// Package exchange defines the capability interfaces the risk engine consumes.
// Broker connectivity lives behind these so the core can run against Binance,
// a simulator, or test mocks without changing admission logic.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
)

// ExecutionService is the broker-facing order and account surface.
// All calls are fallible and must honor ctx deadlines; the risk engine treats
// failures as transient and retries on its next tick.
type ExecutionService interface {
	Execute(ctx context.Context, order domain.Order) error

	GetPortfolio(ctx context.Context) (domain.Portfolio, error)

	GetOpenOrders(ctx context.Context) ([]domain.Order, error)

	GetTodayOrders(ctx context.Context) ([]domain.Order, error)

	CancelOrder(ctx context.Context, orderID string) error

	CancelAllOrders(ctx context.Context) error

	// SubscribeOrderUpdates returns a channel of broker-side order status
	// changes. The channel is closed when the subscription ends.
	SubscribeOrderUpdates(ctx context.Context) (<-chan domain.OrderUpdate, error)
}

// MarketDataService provides valuation quotes.
type MarketDataService interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// SectorProvider classifies a symbol into a sector for exposure aggregation.
// Unknown symbols map to the empty string.
type SectorProvider interface {
	GetSector(symbol string) string
}

// CorrelationProvider returns pairwise correlation for the given symbols.
// Missing pairs are taken as uncorrelated.
type CorrelationProvider interface {
	Correlation(a, b string) (float64, bool)
}
