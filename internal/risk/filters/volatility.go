package filters

import (
	"fmt"

	"tradeguard/internal/domain"
)

// VolatilitySource reports annualized realized volatility for a symbol. The
// second return is false until enough history has accumulated.
type VolatilitySource interface {
	RealizedVol(symbol string) (float64, bool)
}

// VolatilityCeiling rejects buys in symbols whose realized volatility sits
// above the configured ceiling. Symbols without enough history pass.
type VolatilityCeiling struct {
	source VolatilitySource
}

func (f *VolatilityCeiling) Name() string { return "volatility" }

func (f *VolatilityCeiling) Apply(ctx Context) error {
	cfg := ctx.Config.Volatility
	if !cfg.Enabled || f.source == nil || ctx.Proposal.Side != domain.SideBuy {
		return nil
	}
	vol, ok := f.source.RealizedVol(ctx.Proposal.Symbol)
	if !ok {
		return nil
	}
	if vol > cfg.MaxRealizedVol {
		return violation(f.Name(), fmt.Sprintf("realized vol %.2f above ceiling %.2f", vol, cfg.MaxRealizedVol))
	}
	return nil
}
