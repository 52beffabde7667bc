// Package filters implements the ordered admission checks a proposal must
// clear before sizing. Each filter is a pure predicate over the request
// context; none of them performs I/O or refreshes state.
package filters

import (
	"github.com/shopspring/decimal"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
	"tradeguard/internal/logger"
)

// Context carries everything a filter may inspect. Prices are the latest
// known marks; Equity is the portfolio valued against them. Pending is the
// buy notional of admitted-but-unfilled orders per normalized symbol, so the
// exposure caps bind across in-flight orders and not just held positions.
type Context struct {
	Config    config.RiskConfig
	Portfolio domain.Portfolio
	Proposal  domain.TradeProposal
	Prices    map[string]decimal.Decimal
	Pending   map[string]decimal.Decimal
	Equity    decimal.Decimal
}

// Filter rejects a proposal by returning a LimitViolation, or passes it with
// nil.
type Filter interface {
	Name() string
	Apply(ctx Context) error
}

// Chain evaluates filters in construction order and short-circuits on the
// first rejection.
type Chain struct {
	filters []Filter
}

// NewChain builds the standard admission chain. Order matters: cheap
// regulatory checks run before the valuation-heavy ones.
func NewChain(sectors SectorSource, correlations CorrelationSource, vols VolatilitySource) *Chain {
	return &Chain{filters: []Filter{
		&PatternDayTrade{},
		&PositionSize{},
		&SectorExposure{sectors: sectors},
		&CorrelationLimit{source: correlations},
		&VolatilityCeiling{source: vols},
	}}
}

// Check runs the chain and returns the first violation, if any.
func (c *Chain) Check(ctx Context) error {
	for _, f := range c.filters {
		if err := f.Apply(ctx); err != nil {
			logger.Infof("filters: %s rejected %s %s: %v", f.Name(), ctx.Proposal.Side, ctx.Proposal.Symbol, err)
			return err
		}
	}
	return nil
}

func violation(filter, reason string) error {
	return &domain.LimitViolation{Filter: filter, Reason: reason}
}

// markValue prices a position at the latest known mark, falling back to its
// average entry price.
func markValue(pos domain.Position, prices map[string]decimal.Decimal) decimal.Decimal {
	price, ok := prices[domain.NormalizeSymbol(pos.Symbol)]
	if !ok || !price.IsPositive() {
		price = pos.AveragePrice
	}
	return pos.Quantity.Abs().Mul(price)
}
