package config

import (
	"fmt"
)

func validate(c *Config) error {
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Sizing.validate(); err != nil {
		return err
	}
	switch c.Broker.Exchange {
	case "binance", "mock":
	default:
		return fmt.Errorf("broker.exchange must be binance or mock, got %q", c.Broker.Exchange)
	}
	return nil
}

// Validate checks a RiskConfig for contradictions. Exported because the risk
// engine re-validates on runtime config swaps.
func (r RiskConfig) Validate() error {
	if r.MaxPositionSizePct <= 0 || r.MaxPositionSizePct > 1 {
		return fmt.Errorf("risk.max_position_size_pct must be in (0, 1], got %v", r.MaxPositionSizePct)
	}
	if r.MaxDailyLossPct <= 0 || r.MaxDailyLossPct > 0.5 {
		return fmt.Errorf("risk.max_daily_loss_pct must be in (0, 0.5], got %v", r.MaxDailyLossPct)
	}
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct > 1 {
		return fmt.Errorf("risk.max_drawdown_pct must be in (0, 1], got %v", r.MaxDrawdownPct)
	}
	if r.ConsecutiveLossLimit <= 0 {
		return fmt.Errorf("risk.consecutive_loss_limit must be > 0, got %d", r.ConsecutiveLossLimit)
	}
	if r.ConsecutiveLossScope != LossScopeGlobal && r.ConsecutiveLossScope != LossScopePerSymbol {
		return fmt.Errorf("risk.consecutive_loss_scope must be global or per_symbol, got %q", r.ConsecutiveLossScope)
	}
	if r.MaxSectorExposurePct <= 0 || r.MaxSectorExposurePct > 1 {
		return fmt.Errorf("risk.max_sector_exposure_pct must be in (0, 1], got %v", r.MaxSectorExposurePct)
	}
	if r.ValuationIntervalSeconds <= 0 {
		return fmt.Errorf("risk.valuation_interval_seconds must be > 0, got %d", r.ValuationIntervalSeconds)
	}
	if r.PendingOrderTTLSeconds <= 0 {
		return fmt.Errorf("risk.pending_order_ttl_seconds must be > 0, got %d", r.PendingOrderTTLSeconds)
	}
	if r.BrokerTimeoutMs <= 0 {
		return fmt.Errorf("risk.broker_timeout_ms must be > 0, got %d", r.BrokerTimeoutMs)
	}
	if r.ProposalBuffer <= 0 {
		return fmt.Errorf("risk.proposal_buffer must be > 0, got %d", r.ProposalBuffer)
	}
	if r.Correlation.Enabled && (r.Correlation.MaxThreshold <= 0 || r.Correlation.MaxThreshold > 1) {
		return fmt.Errorf("risk.correlation.max_threshold must be in (0, 1], got %v", r.Correlation.MaxThreshold)
	}
	if r.Volatility.Enabled && r.Volatility.MaxRealizedVol <= 0 {
		return fmt.Errorf("risk.volatility.max_realized_vol must be > 0, got %v", r.Volatility.MaxRealizedVol)
	}
	return nil
}

func (s SizingConfig) validate() error {
	if s.RiskPerTradePct > 1 {
		return fmt.Errorf("sizing.risk_per_trade_pct must be <= 1, got %v", s.RiskPerTradePct)
	}
	if s.MaxPositions < 0 {
		return fmt.Errorf("sizing.max_positions must be >= 0, got %d", s.MaxPositions)
	}
	if s.MaxPositionSizePct < 0 || s.MaxPositionSizePct > 1 {
		return fmt.Errorf("sizing.max_position_size_pct must be in [0, 1], got %v", s.MaxPositionSizePct)
	}
	if s.RiskPerTradePct <= 0 && s.StaticQuantity <= 0 {
		return fmt.Errorf("sizing.static_quantity must be > 0 when risk sizing is disabled")
	}
	return nil
}
