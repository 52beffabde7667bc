package config

// applyDefaults fills zero-valued fields with conservative defaults. Limits
// default tight; loosening them is an explicit operator decision.
func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9920"
	}
	if c.App.StatePath == "" {
		c.App.StatePath = "data/riskstate.db"
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "binance"
	}

	r := &c.Risk
	if r.MaxPositionSizePct == 0 {
		r.MaxPositionSizePct = 0.10
	}
	if r.MaxDailyLossPct == 0 {
		r.MaxDailyLossPct = 0.02
	}
	if r.MaxDrawdownPct == 0 {
		r.MaxDrawdownPct = 0.05
	}
	if r.ConsecutiveLossLimit == 0 {
		r.ConsecutiveLossLimit = 3
	}
	if r.ConsecutiveLossScope == "" {
		r.ConsecutiveLossScope = LossScopeGlobal
	}
	if r.MaxSectorExposurePct == 0 {
		r.MaxSectorExposurePct = 0.20
	}
	if r.ValuationIntervalSeconds == 0 {
		r.ValuationIntervalSeconds = 60
	}
	if r.PendingOrderTTLSeconds == 0 {
		r.PendingOrderTTLSeconds = 300
	}
	if r.SnapshotStalenessMs == 0 {
		r.SnapshotStalenessMs = 5000
	}
	if r.SpreadStalenessMs == 0 {
		r.SpreadStalenessMs = 10000
	}
	if r.BrokerTimeoutMs == 0 {
		r.BrokerTimeoutMs = 2000
	}
	if r.ProposalBuffer == 0 {
		r.ProposalBuffer = 64
	}
	if r.PDT.MinEquity == 0 {
		r.PDT.MinEquity = 25000
	}
	if r.PDT.MaxDayTrades == 0 {
		r.PDT.MaxDayTrades = 3
	}
	if r.Correlation.MaxThreshold == 0 {
		r.Correlation.MaxThreshold = 0.85
	}
	if r.Volatility.MaxRealizedVol == 0 {
		r.Volatility.MaxRealizedVol = 1.5
	}
	if r.Volatility.LookbackPeriod == 0 {
		r.Volatility.LookbackPeriod = 20
	}
	if r.Volatility.MinMultiplier == 0 {
		r.Volatility.MinMultiplier = 0.5
	}
	if r.Volatility.MaxMultiplier == 0 {
		r.Volatility.MaxMultiplier = 1.5
	}

	if c.Sizing.MaxPositions == 0 {
		c.Sizing.MaxPositions = 5
	}
	if c.Sizing.MaxPositionSizePct == 0 {
		c.Sizing.MaxPositionSizePct = r.MaxPositionSizePct
	}
	if c.Sizing.StaticQuantity == 0 {
		c.Sizing.StaticQuantity = 1
	}
}
