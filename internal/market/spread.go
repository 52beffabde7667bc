// Package market holds shared market-data state: the bid/ask spread cache
// updated by the gateway stream and read by liquidation and sizing.
package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/logger"
)

// SpreadData is the latest best bid/ask for a symbol.
type SpreadData struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	SpreadBps float64 // (ask-bid)/mid in basis points
	UpdatedAt time.Time
}

// Mid returns the mid-spread price.
func (d SpreadData) Mid() decimal.Decimal {
	return d.Bid.Add(d.Ask).Div(decimal.NewFromInt(2))
}

// SpreadCache is a read-mostly map of per-symbol spread data. Writers are the
// market-data stream; readers are liquidation and the sizing path.
type SpreadCache struct {
	mu      sync.RWMutex
	spreads map[string]SpreadData
	now     func() time.Time
}

func NewSpreadCache() *SpreadCache {
	return &SpreadCache{
		spreads: make(map[string]SpreadData),
		now:     time.Now,
	}
}

// Update records the latest quote for symbol.
func (c *SpreadCache) Update(symbol string, bid, ask decimal.Decimal) {
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	spreadBps := 0.0
	if mid.IsPositive() {
		spreadBps, _ = ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(10000)).Float64()
	}
	if spreadBps > 50 {
		logger.Debugf("spreadcache: wide spread for %s: bid=%s ask=%s (%.2f bps)", symbol, bid, ask, spreadBps)
	}

	c.mu.Lock()
	c.spreads[symbol] = SpreadData{Bid: bid, Ask: ask, SpreadBps: spreadBps, UpdatedAt: c.now()}
	c.mu.Unlock()
}

// GetSpreadData returns the cached quote for symbol, if any.
func (c *SpreadCache) GetSpreadData(symbol string) (SpreadData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.spreads[symbol]
	return d, ok
}

// SpreadPct returns the spread as a fraction (0.01 = 1%).
func (c *SpreadCache) SpreadPct(symbol string) (float64, bool) {
	d, ok := c.GetSpreadData(symbol)
	if !ok {
		return 0, false
	}
	return d.SpreadBps / 10000, true
}

// IsStale reports whether the quote for symbol is older than threshold.
// Unknown symbols are stale.
func (c *SpreadCache) IsStale(symbol string, threshold time.Duration) bool {
	d, ok := c.GetSpreadData(symbol)
	if !ok {
		return true
	}
	return c.now().Sub(d.UpdatedAt) > threshold
}
