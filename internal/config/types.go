package config

import "time"

// Config is the main configuration carrier for tradeguard.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Broker BrokerConfig `yaml:"broker"`
	Risk   RiskConfig   `yaml:"risk"`
	Sizing SizingConfig `yaml:"sizing"`
}

type AppConfig struct {
	Env           string `yaml:"env"`
	LogLevel      string `yaml:"log_level"`
	HTTPAddr      string `yaml:"http_addr"`
	LogPath       string `yaml:"log_path"`
	StatePath     string `yaml:"state_path"`      // sqlite file for risk-state persistence
	SectorMapPath string `yaml:"sector_map_path"` // JSON symbol->sector map
}

type BrokerConfig struct {
	Exchange  string   `yaml:"exchange"` // "binance" | "mock"
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	Testnet   bool     `yaml:"testnet"`
	Symbols   []string `yaml:"symbols"`
}

const (
	LossScopeGlobal    = "global"
	LossScopePerSymbol = "per_symbol"
)

// RiskConfig bundles all admission limits. Loaded once at startup and swapped
// wholesale through the command channel on reload, never mutated in place.
type RiskConfig struct {
	MaxPositionSizePct   float64 `yaml:"max_position_size_pct"`  // per-position ceiling, fraction of equity
	MaxDailyLossPct      float64 `yaml:"max_daily_loss_pct"`     // daily loss halt trigger
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`       // drawdown-from-peak halt trigger
	ConsecutiveLossLimit int     `yaml:"consecutive_loss_limit"` // losing fills before halt
	ConsecutiveLossScope string  `yaml:"consecutive_loss_scope"` // "global" | "per_symbol"
	MaxSectorExposurePct float64 `yaml:"max_sector_exposure_pct"`

	ValuationIntervalSeconds int `yaml:"valuation_interval_seconds"`
	PendingOrderTTLSeconds   int `yaml:"pending_order_ttl_seconds"`
	SnapshotStalenessMs      int `yaml:"snapshot_staleness_ms"`
	SpreadStalenessMs        int `yaml:"spread_staleness_ms"`
	BrokerTimeoutMs          int `yaml:"broker_timeout_ms"`
	ProposalBuffer           int `yaml:"proposal_buffer"`

	PDT         PDTConfig         `yaml:"pdt"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Volatility  VolatilityConfig  `yaml:"volatility"`
}

type PDTConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinEquity    float64 `yaml:"min_equity"`     // regulatory threshold, 25000 USD
	MaxDayTrades int     `yaml:"max_day_trades"` // in a rolling 5-day window, broker-reported
}

type CorrelationConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxThreshold float64 `yaml:"max_threshold"` // reject above this pairwise correlation
}

type VolatilityConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MaxRealizedVol float64 `yaml:"max_realized_vol"` // annualized ceiling, e.g. 1.5 = 150%
	LookbackPeriod int     `yaml:"lookback_period"`
	MinMultiplier  float64 `yaml:"min_multiplier"`
	MaxMultiplier  float64 `yaml:"max_multiplier"`
}

// SizingConfig controls the quantity calculation for admitted proposals.
type SizingConfig struct {
	RiskPerTradePct    float64 `yaml:"risk_per_trade_pct"` // <=0 disables risk sizing
	MaxPositions       int     `yaml:"max_positions"`
	MaxPositionSizePct float64 `yaml:"max_position_size_pct"`
	StaticQuantity     float64 `yaml:"static_quantity"` // fallback when risk sizing disabled
}

func (r RiskConfig) ValuationInterval() time.Duration {
	return time.Duration(r.ValuationIntervalSeconds) * time.Second
}

func (r RiskConfig) PendingOrderTTL() time.Duration {
	return time.Duration(r.PendingOrderTTLSeconds) * time.Second
}

func (r RiskConfig) SnapshotStaleness() time.Duration {
	return time.Duration(r.SnapshotStalenessMs) * time.Millisecond
}

func (r RiskConfig) SpreadStaleness() time.Duration {
	return time.Duration(r.SpreadStalenessMs) * time.Millisecond
}

func (r RiskConfig) BrokerTimeout() time.Duration {
	return time.Duration(r.BrokerTimeoutMs) * time.Millisecond
}
