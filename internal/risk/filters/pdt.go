package filters

import (
	"fmt"

	"tradeguard/internal/domain"
)

// PatternDayTrade enforces the FINRA pattern-day-trader rule: accounts under
// the minimum-equity threshold get a capped number of day trades. The
// day-trade count is broker-reported on the portfolio snapshot. A restricted
// account may still exit overnight positions; only new buys and sells that
// would complete a day trade are blocked.
type PatternDayTrade struct{}

func (f *PatternDayTrade) Name() string { return "pdt" }

func (f *PatternDayTrade) Apply(ctx Context) error {
	cfg := ctx.Config.PDT
	if !cfg.Enabled {
		return nil
	}
	if ctx.Equity.InexactFloat64() >= cfg.MinEquity {
		return nil
	}
	if ctx.Portfolio.DayTradeCount < cfg.MaxDayTrades {
		return nil
	}

	if ctx.Proposal.Side == domain.SideSell {
		pos, ok := ctx.Portfolio.FindPosition(ctx.Proposal.Symbol)
		if !ok || !openedSameDay(pos, ctx.Proposal) {
			return nil
		}
		return violation(f.Name(), fmt.Sprintf("selling %s would complete a day trade with equity %s below $%.0f and %d day trades used",
			ctx.Proposal.Symbol, ctx.Equity, cfg.MinEquity, ctx.Portfolio.DayTradeCount))
	}
	return violation(f.Name(), fmt.Sprintf("equity %s below $%.0f with %d day trades used",
		ctx.Equity, cfg.MinEquity, ctx.Portfolio.DayTradeCount))
}

// openedSameDay reports whether exiting the position now would count as a day
// trade. Brokers that do not report open times leave OpenedAt zero, which
// reads as an overnight position.
func openedSameDay(pos domain.Position, p domain.TradeProposal) bool {
	if pos.OpenedAt.IsZero() || p.Timestamp.IsZero() {
		return false
	}
	oy, om, od := pos.OpenedAt.UTC().Date()
	py, pm, pd := p.Timestamp.UTC().Date()
	return oy == py && om == pm && od == pd
}
