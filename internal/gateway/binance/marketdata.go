package binance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
)

// GetPrices fetches last-trade prices for the given symbols in one call.
func (g *Gateway) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	clean := make([]string, 0, len(symbols))
	for _, s := range symbols {
		clean = append(clean, domain.NormalizeSymbol(s))
	}

	prices, err := g.client.NewListPricesService().Symbols(clean).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			continue
		}
		out[domain.NormalizeSymbol(p.Symbol)] = price
	}
	return out, nil
}
