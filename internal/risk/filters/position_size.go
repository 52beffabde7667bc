package filters

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
)

// PositionSize caps a single symbol's exposure at a fraction of total equity.
// The proposal's notional is added to whatever is already held in the symbol
// plus the notional of unfilled orders for it, so a burst of same-symbol
// proposals cannot stack past the cap before any of them fills.
type PositionSize struct{}

func (f *PositionSize) Name() string { return "position_size" }

func (f *PositionSize) Apply(ctx Context) error {
	if ctx.Proposal.Side != domain.SideBuy || ctx.Config.MaxPositionSizePct <= 0 {
		return nil
	}
	if !ctx.Equity.IsPositive() {
		return violation(f.Name(), "no positive equity to size against")
	}

	limit := ctx.Equity.Mul(decimal.NewFromFloat(ctx.Config.MaxPositionSizePct))
	exposure := ctx.Proposal.Notional()
	if pos, ok := ctx.Portfolio.FindPosition(ctx.Proposal.Symbol); ok {
		exposure = exposure.Add(markValue(pos, ctx.Prices))
	}
	exposure = exposure.Add(ctx.Pending[domain.NormalizeSymbol(ctx.Proposal.Symbol)])

	if exposure.GreaterThan(limit) {
		return violation(f.Name(), fmt.Sprintf("exposure %s would exceed limit %s (%.0f%% of equity)",
			exposure.StringFixed(2), limit.StringFixed(2), ctx.Config.MaxPositionSizePct*100))
	}
	return nil
}
