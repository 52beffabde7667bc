package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradeguard/internal/config"
)

func testConfig() config.SizingConfig {
	return config.SizingConfig{
		RiskPerTradePct:    0.01,
		MaxPositions:       5,
		MaxPositionSizePct: 0.20,
		StaticQuantity:     1,
	}
}

func TestCalculateQuantity(t *testing.T) {
	equity := decimal.NewFromInt(100000)
	price := decimal.NewFromInt(100)

	t.Run("risk pct of equity", func(t *testing.T) {
		// 1% of 100k = 1000, price 100 -> 10 shares
		qty := CalculateQuantity(testConfig(), equity, price)
		assert.True(t, qty.Equal(decimal.NewFromInt(10)), "got %s", qty)
	})

	t.Run("capped by position slot", func(t *testing.T) {
		cfg := testConfig()
		cfg.RiskPerTradePct = 0.50 // would be 50k, slot cap is 100k/5 = 20k
		qty := CalculateQuantity(cfg, equity, price)
		assert.True(t, qty.Equal(decimal.NewFromInt(200)), "got %s", qty)
	})

	t.Run("capped by hard ceiling", func(t *testing.T) {
		cfg := testConfig()
		cfg.RiskPerTradePct = 0.50
		cfg.MaxPositions = 2 // slot cap 50k, ceiling 20% = 20k wins
		qty := CalculateQuantity(cfg, equity, price)
		assert.True(t, qty.Equal(decimal.NewFromInt(200)), "got %s", qty)
	})

	t.Run("static fallback ignores equity and price", func(t *testing.T) {
		cfg := testConfig()
		cfg.RiskPerTradePct = 0
		cfg.StaticQuantity = 5
		qty := CalculateQuantity(cfg, decimal.Zero, decimal.NewFromInt(-3))
		assert.True(t, qty.Equal(decimal.NewFromInt(5)), "got %s", qty)
	})

	t.Run("zero on non-positive inputs", func(t *testing.T) {
		assert.True(t, CalculateQuantity(testConfig(), decimal.Zero, price).IsZero())
		assert.True(t, CalculateQuantity(testConfig(), equity, decimal.Zero).IsZero())
	})

	t.Run("rounds to four decimals", func(t *testing.T) {
		qty := CalculateQuantity(testConfig(), equity, decimal.NewFromInt(3))
		assert.True(t, qty.Equal(decimal.NewFromFloat(333.3333)), "got %s", qty)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := CalculateQuantity(testConfig(), equity, price)
		b := CalculateQuantity(testConfig(), equity, price)
		assert.True(t, a.Equal(b))
	})
}
