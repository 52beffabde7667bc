package filters

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
)

type mapSectors map[string]string

func (m mapSectors) GetSector(symbol string) string { return m[domain.NormalizeSymbol(symbol)] }

type mapCorrelations map[string]float64

func (m mapCorrelations) Correlation(a, b string) (float64, bool) {
	if v, ok := m[a+"|"+b]; ok {
		return v, true
	}
	v, ok := m[b+"|"+a]
	return v, ok
}

type mapVols map[string]float64

func (m mapVols) RealizedVol(symbol string) (float64, bool) {
	v, ok := m[domain.NormalizeSymbol(symbol)]
	return v, ok
}

func baseContext() Context {
	prices := map[string]decimal.Decimal{
		"AAPL": decimal.RequireFromString("100"),
		"MSFT": decimal.RequireFromString("200"),
	}
	portfolio := domain.Portfolio{
		Cash: decimal.RequireFromString("50000"),
		Positions: map[string]domain.Position{
			"MSFT": {Symbol: "MSFT", Quantity: decimal.RequireFromString("100"), AveragePrice: decimal.RequireFromString("180")},
		},
	}
	return Context{
		Config: config.RiskConfig{
			MaxPositionSizePct:   0.10,
			MaxSectorExposurePct: 0.40,
			PDT:                  config.PDTConfig{Enabled: true, MinEquity: 25000, MaxDayTrades: 3},
			Correlation:          config.CorrelationConfig{Enabled: true, MaxThreshold: 0.85},
			Volatility:           config.VolatilityConfig{Enabled: true, MaxRealizedVol: 1.5},
		},
		Portfolio: portfolio,
		Proposal: domain.TradeProposal{
			Symbol:    "AAPL",
			Side:      domain.SideBuy,
			Price:     decimal.RequireFromString("100"),
			Quantity:  decimal.RequireFromString("10"),
			Timestamp: time.Now(),
		},
		Prices: prices,
		Equity: portfolio.TotalEquity(prices),
	}
}

func TestPatternDayTrade(t *testing.T) {
	f := &PatternDayTrade{}

	t.Run("above threshold is unrestricted", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("25001")
		ctx.Portfolio.DayTradeCount = 9
		assert.NoError(t, f.Apply(ctx))
	})

	t.Run("at threshold is unrestricted", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("25000")
		ctx.Portfolio.DayTradeCount = 9
		assert.NoError(t, f.Apply(ctx))
	})

	t.Run("below threshold with trades left passes", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("24999")
		ctx.Portfolio.DayTradeCount = 2
		assert.NoError(t, f.Apply(ctx))
	})

	t.Run("below threshold and out of trades rejects buys", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("24999")
		ctx.Portfolio.DayTradeCount = 3
		err := f.Apply(ctx)
		require.Error(t, err)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "pdt", lv.Filter)
	})

	t.Run("restricted account may still exit an overnight position", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("24999")
		ctx.Portfolio.DayTradeCount = 3
		ctx.Proposal.Symbol = "MSFT"
		ctx.Proposal.Side = domain.SideSell
		assert.NoError(t, f.Apply(ctx))
	})

	t.Run("restricted sell completing a day trade rejects", func(t *testing.T) {
		ctx := baseContext()
		ctx.Equity = decimal.RequireFromString("24999")
		ctx.Portfolio.DayTradeCount = 3
		pos := ctx.Portfolio.Positions["MSFT"]
		pos.OpenedAt = ctx.Proposal.Timestamp
		ctx.Portfolio.Positions["MSFT"] = pos
		ctx.Proposal.Symbol = "MSFT"
		ctx.Proposal.Side = domain.SideSell
		err := f.Apply(ctx)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "pdt", lv.Filter)
	})

	t.Run("disabled passes everything", func(t *testing.T) {
		ctx := baseContext()
		ctx.Config.PDT.Enabled = false
		ctx.Equity = decimal.RequireFromString("100")
		ctx.Portfolio.DayTradeCount = 99
		assert.NoError(t, f.Apply(ctx))
	})
}

func TestPositionSize(t *testing.T) {
	f := &PositionSize{}

	t.Run("within limit passes", func(t *testing.T) {
		// equity 70000, 10% limit = 7000, proposal 1000 with no AAPL held
		assert.NoError(t, f.Apply(baseContext()))
	})

	t.Run("includes existing position in exposure", func(t *testing.T) {
		ctx := baseContext()
		// MSFT held at 100*200 = 20000 market value, limit 7000
		ctx.Proposal.Symbol = "MSFT"
		ctx.Proposal.Price = decimal.RequireFromString("200")
		ctx.Proposal.Quantity = decimal.RequireFromString("1")
		err := f.Apply(ctx)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "position_size", lv.Filter)
	})

	t.Run("counts unfilled orders toward the cap", func(t *testing.T) {
		ctx := baseContext()
		// limit 7000, proposal 1000, 6500 already committed to pending buys
		ctx.Pending = map[string]decimal.Decimal{"AAPL": decimal.RequireFromString("6500")}
		err := f.Apply(ctx)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "position_size", lv.Filter)
	})

	t.Run("oversized proposal rejects", func(t *testing.T) {
		ctx := baseContext()
		ctx.Proposal.Quantity = decimal.RequireFromString("80") // 8000 > 7000
		assert.Error(t, f.Apply(ctx))
	})

	t.Run("sells are not size checked", func(t *testing.T) {
		ctx := baseContext()
		ctx.Proposal.Side = domain.SideSell
		ctx.Proposal.Quantity = decimal.RequireFromString("10000")
		assert.NoError(t, f.Apply(ctx))
	})
}

func TestSectorExposure(t *testing.T) {
	sectors := mapSectors{"AAPL": "tech", "MSFT": "tech"}
	f := &SectorExposure{sectors: sectors}

	t.Run("combined sector exposure under limit passes", func(t *testing.T) {
		// tech already 20000, equity 70000, limit 28000, proposal adds 1000
		assert.NoError(t, f.Apply(baseContext()))
	})

	t.Run("combined sector exposure over limit rejects", func(t *testing.T) {
		ctx := baseContext()
		ctx.Proposal.Quantity = decimal.RequireFromString("81") // 8100 + 20000 > 28000
		err := f.Apply(ctx)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "sector_exposure", lv.Filter)
	})

	t.Run("counts unfilled same-sector orders", func(t *testing.T) {
		ctx := baseContext()
		// tech held 20000 + pending 7500 + proposal 1000 > limit 28000
		ctx.Pending = map[string]decimal.Decimal{"MSFT": decimal.RequireFromString("7500")}
		err := f.Apply(ctx)
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "sector_exposure", lv.Filter)
	})

	t.Run("unmapped symbol passes", func(t *testing.T) {
		ctx := baseContext()
		ctx.Proposal.Symbol = "XOM"
		ctx.Proposal.Quantity = decimal.RequireFromString("100000")
		assert.NoError(t, f.Apply(ctx))
	})
}

func TestCorrelationLimit(t *testing.T) {
	t.Run("high correlation with held symbol rejects", func(t *testing.T) {
		f := &CorrelationLimit{source: mapCorrelations{"AAPL|MSFT": 0.92}}
		err := f.Apply(baseContext())
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "correlation", lv.Filter)
	})

	t.Run("correlation at threshold passes", func(t *testing.T) {
		f := &CorrelationLimit{source: mapCorrelations{"AAPL|MSFT": 0.85}}
		assert.NoError(t, f.Apply(baseContext()))
	})

	t.Run("unknown pair passes", func(t *testing.T) {
		f := &CorrelationLimit{source: mapCorrelations{}}
		assert.NoError(t, f.Apply(baseContext()))
	})

	t.Run("disabled passes", func(t *testing.T) {
		f := &CorrelationLimit{source: mapCorrelations{"AAPL|MSFT": 0.99}}
		ctx := baseContext()
		ctx.Config.Correlation.Enabled = false
		assert.NoError(t, f.Apply(ctx))
	})
}

func TestVolatilityCeiling(t *testing.T) {
	t.Run("vol above ceiling rejects", func(t *testing.T) {
		f := &VolatilityCeiling{source: mapVols{"AAPL": 1.8}}
		err := f.Apply(baseContext())
		var lv *domain.LimitViolation
		require.ErrorAs(t, err, &lv)
		assert.Equal(t, "volatility", lv.Filter)
	})

	t.Run("no history passes", func(t *testing.T) {
		f := &VolatilityCeiling{source: mapVols{}}
		assert.NoError(t, f.Apply(baseContext()))
	})
}

func TestChainShortCircuitsOnFirstRejection(t *testing.T) {
	chain := NewChain(
		mapSectors{"AAPL": "tech", "MSFT": "tech"},
		mapCorrelations{"AAPL|MSFT": 0.95},
		mapVols{"AAPL": 2.0},
	)

	ctx := baseContext()
	ctx.Proposal.Quantity = decimal.RequireFromString("80") // trips position_size first

	err := chain.Check(ctx)
	var lv *domain.LimitViolation
	require.ErrorAs(t, err, &lv)
	assert.Equal(t, "position_size", lv.Filter)
}

func TestChainPassesCleanProposal(t *testing.T) {
	chain := NewChain(mapSectors{}, mapCorrelations{}, mapVols{})
	assert.NoError(t, chain.Check(baseContext()))
}
