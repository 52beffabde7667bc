package filters

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
)

// SectorSource maps a symbol to its sector. An empty sector means unknown.
type SectorSource interface {
	GetSector(symbol string) string
}

// SectorExposure caps the combined exposure of all positions sharing the
// proposal's sector. Symbols with no sector mapping pass: concentration in
// the unknown bucket is not a sector bet we can measure.
type SectorExposure struct {
	sectors SectorSource
}

func (f *SectorExposure) Name() string { return "sector_exposure" }

func (f *SectorExposure) Apply(ctx Context) error {
	if ctx.Proposal.Side != domain.SideBuy || ctx.Config.MaxSectorExposurePct <= 0 || f.sectors == nil {
		return nil
	}
	sector := f.sectors.GetSector(ctx.Proposal.Symbol)
	if sector == "" {
		return nil
	}
	if !ctx.Equity.IsPositive() {
		return violation(f.Name(), "no positive equity to size against")
	}

	exposure := ctx.Proposal.Notional()
	for _, pos := range ctx.Portfolio.Positions {
		if pos.Quantity.IsZero() || f.sectors.GetSector(pos.Symbol) != sector {
			continue
		}
		exposure = exposure.Add(markValue(pos, ctx.Prices))
	}
	for sym, notional := range ctx.Pending {
		if f.sectors.GetSector(sym) == sector {
			exposure = exposure.Add(notional)
		}
	}

	limit := ctx.Equity.Mul(decimal.NewFromFloat(ctx.Config.MaxSectorExposurePct))
	if exposure.GreaterThan(limit) {
		return violation(f.Name(), fmt.Sprintf("%s exposure %s would exceed limit %s",
			sector, exposure.StringFixed(2), limit.StringFixed(2)))
	}
	return nil
}
