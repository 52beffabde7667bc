package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpreadCalculation(t *testing.T) {
	cache := NewSpreadCache()
	cache.Update("BTC/USD", decimal.NewFromInt(88700), decimal.NewFromInt(88710))

	pct, ok := cache.SpreadPct("BTC/USD")
	require.True(t, ok)
	// (88710-88700)/88705 = 0.0112%
	assert.InDelta(t, 0.000112, pct, 0.000001)

	d, ok := cache.GetSpreadData("BTC/USD")
	require.True(t, ok)
	assert.True(t, d.Mid().Equal(decimal.NewFromInt(88705)))
}

func TestStaleDetection(t *testing.T) {
	cache := NewSpreadCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Update("AVAX/USD", decimal.NewFromFloat(13.5), decimal.NewFromFloat(13.52))
	assert.False(t, cache.IsStale("AVAX/USD", time.Minute))

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.True(t, cache.IsStale("AVAX/USD", time.Minute))

	assert.True(t, cache.IsStale("UNKNOWN", time.Minute))
}
