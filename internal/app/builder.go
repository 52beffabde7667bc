package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeguard/internal/config"
	binancegw "tradeguard/internal/gateway/binance"
	"tradeguard/internal/gateway/exchange"
	mockgw "tradeguard/internal/gateway/mock"
	"tradeguard/internal/gateway/sector"
	"tradeguard/internal/logger"
	"tradeguard/internal/market"
	"tradeguard/internal/risk"
	"tradeguard/internal/risk/filters"
	"tradeguard/internal/risk/liquidation"
	"tradeguard/internal/risk/portfoliostate"
	"tradeguard/internal/risk/vol"
	"tradeguard/internal/store/riskstate"
	adminhttp "tradeguard/internal/transport/http/admin"
)

const paperStartingCash = 100_000

// build assembles the dependency graph by hand. The graph is small enough
// that explicit wiring reads better than a generated injector.
func build(cfg *config.Config, cfgPath string) (*App, error) {
	a := &App{cfg: cfg, cfgPath: cfgPath}
	a.spreads = market.NewSpreadCache()

	var (
		exec       exchange.ExecutionService
		marketData exchange.MarketDataService
	)
	switch cfg.Broker.Exchange {
	case "binance":
		gw, err := binancegw.New(cfg.Broker)
		if err != nil {
			return nil, fmt.Errorf("binance gateway: %w", err)
		}
		exec, marketData = gw, gw
		spreads := a.spreads
		a.streamSpreads = func(ctx context.Context) { gw.StreamBookTickers(ctx, spreads) }
	case "mock":
		gw := mockgw.New(decimal.NewFromInt(paperStartingCash))
		exec, marketData = gw, gw
		logger.Warnf("app: running against the paper broker, orders will not reach an exchange")
	default:
		return nil, fmt.Errorf("unsupported broker exchange %q", cfg.Broker.Exchange)
	}

	var sectors *sector.Provider
	if cfg.App.SectorMapPath != "" {
		p, err := sector.Load(cfg.App.SectorMapPath)
		if err != nil {
			return nil, fmt.Errorf("sector map: %w", err)
		}
		sectors = p
	}

	store, err := riskstate.NewStore(cfg.App.StatePath)
	if err != nil {
		return nil, fmt.Errorf("risk state store: %w", err)
	}
	a.store = store

	states := portfoliostate.NewManager(exec, cfg.Risk.SnapshotStaleness(), cfg.Risk.BrokerTimeout())
	vols := vol.NewManager(cfg.Risk.Volatility, periodsPerYear(cfg.Risk))
	liquidator := liquidation.NewService(a.spreads, exec, cfg.Risk.SpreadStaleness())

	var (
		sectorSource      filters.SectorSource
		correlationSource filters.CorrelationSource
	)
	if sectors != nil {
		sectorSource = sectors
		correlationSource = sectors
	}
	chain := filters.NewChain(sectorSource, correlationSource, vols)

	manager, err := risk.NewManager(cfg.Risk, cfg.Sizing, risk.Deps{
		States:     states,
		Exec:       exec,
		MarketData: marketData,
		Chain:      chain,
		Vols:       vols,
		Liquidator: liquidator,
		Store:      store,
		Symbols:    cfg.Broker.Symbols,
	})
	if err != nil {
		return nil, fmt.Errorf("risk manager: %w", err)
	}
	a.manager = manager

	admin, err := adminhttp.NewServer(cfg.App.HTTPAddr, manager)
	if err != nil {
		return nil, fmt.Errorf("admin server: %w", err)
	}
	a.admin = admin

	return a, nil
}

// periodsPerYear converts the valuation cadence into an annualization factor
// for realized vol, assuming a 24/7 market.
func periodsPerYear(r config.RiskConfig) float64 {
	interval := r.ValuationInterval().Seconds()
	if interval <= 0 {
		return 252
	}
	const secondsPerYear = 365 * 24 * 3600
	return secondsPerYear / interval
}
