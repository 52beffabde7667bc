package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a broker-reported holding. OpenedAt is when the holding was
// first opened; zero when the broker does not report it.
type Position struct {
	Symbol       string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	OpenedAt     time.Time
}

// Portfolio is the broker-reported account state. It is only ever mutated by
// confirmed fills on the execution side; the risk engine reads clones.
type Portfolio struct {
	Cash          decimal.Decimal
	Positions     map[string]Position
	DayTradeCount int
}

func NewPortfolio() Portfolio {
	return Portfolio{Positions: make(map[string]Position)}
}

// Clone returns a deep copy safe to hand across goroutines.
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Positions = make(map[string]Position, len(p.Positions))
	for k, v := range p.Positions {
		out.Positions[k] = v
	}
	return out
}

// FindPosition looks up a holding by normalized symbol.
func (p Portfolio) FindPosition(symbol string) (Position, bool) {
	want := NormalizeSymbol(symbol)
	for sym, pos := range p.Positions {
		if NormalizeSymbol(sym) == want {
			return pos, true
		}
	}
	return Position{}, false
}

// TotalEquity values the portfolio at the given prices. Price keys are
// normalized like FindPosition does; positions without a quote fall back to
// their average entry price.
func (p Portfolio) TotalEquity(prices map[string]decimal.Decimal) decimal.Decimal {
	equity := p.Cash
	for sym, pos := range p.Positions {
		price, ok := prices[NormalizeSymbol(sym)]
		if !ok {
			price = pos.AveragePrice
		}
		equity = equity.Add(pos.Quantity.Mul(price))
	}
	return equity
}

// UnrealizedPnL sums (market - cost basis) over positions with a known price.
func (p Portfolio) UnrealizedPnL(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for sym, pos := range p.Positions {
		price, ok := prices[NormalizeSymbol(sym)]
		if !ok {
			continue
		}
		total = total.Add(pos.Quantity.Mul(price.Sub(pos.AveragePrice)))
	}
	return total
}
