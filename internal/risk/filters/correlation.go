package filters

import (
	"fmt"

	"tradeguard/internal/domain"
)

// CorrelationSource reports pairwise correlation between two symbols. The
// second return is false when no figure is known for the pair.
type CorrelationSource interface {
	Correlation(a, b string) (float64, bool)
}

// CorrelationLimit rejects buys that are too tightly correlated with any
// symbol already held. Unknown pairs pass.
type CorrelationLimit struct {
	source CorrelationSource
}

func (f *CorrelationLimit) Name() string { return "correlation" }

func (f *CorrelationLimit) Apply(ctx Context) error {
	cfg := ctx.Config.Correlation
	if !cfg.Enabled || f.source == nil || ctx.Proposal.Side != domain.SideBuy {
		return nil
	}

	proposed := domain.NormalizeSymbol(ctx.Proposal.Symbol)
	for _, pos := range ctx.Portfolio.Positions {
		held := domain.NormalizeSymbol(pos.Symbol)
		if pos.Quantity.IsZero() || held == proposed {
			continue
		}
		corr, ok := f.source.Correlation(proposed, held)
		if ok && corr > cfg.MaxThreshold {
			return violation(f.Name(), fmt.Sprintf("correlation %.2f with held %s exceeds %.2f",
				corr, pos.Symbol, cfg.MaxThreshold))
		}
	}
	return nil
}
