// Package sizing computes order quantities from equity and risk limits.
// Everything here is pure: no clocks, no I/O, no shared state.
package sizing

import (
	"github.com/shopspring/decimal"

	"tradeguard/internal/config"
)

// quantityPrecision is the decimal precision orders are rounded to.
const quantityPrecision = 4

// CalculateQuantity converts a risk budget into a share/contract quantity.
//
// risk_per_trade_pct <= 0 is the explicit opt-out: the static quantity is
// returned untouched. Otherwise the target allocation equity * riskPct is
// capped by the even per-slot allocation (equity / max_positions, when
// max_positions > 0) and by the hard per-position ceiling
// (equity * max_position_size_pct), then divided by price.
//
// Non-positive equity or price yields zero.
func CalculateQuantity(cfg config.SizingConfig, totalEquity, price decimal.Decimal) decimal.Decimal {
	if cfg.RiskPerTradePct <= 0 {
		return decimal.NewFromFloat(cfg.StaticQuantity)
	}
	if !totalEquity.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}

	target := totalEquity.Mul(decimal.NewFromFloat(cfg.RiskPerTradePct))

	if cfg.MaxPositions > 0 {
		slot := totalEquity.Div(decimal.NewFromInt(int64(cfg.MaxPositions)))
		if target.GreaterThan(slot) {
			target = slot
		}
	}
	if cfg.MaxPositionSizePct > 0 {
		ceiling := totalEquity.Mul(decimal.NewFromFloat(cfg.MaxPositionSizePct))
		if target.GreaterThan(ceiling) {
			target = ceiling
		}
	}

	return target.Div(price).Round(quantityPrecision)
}
