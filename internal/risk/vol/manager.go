// Package vol maintains rolling realized-volatility estimates per symbol.
package vol

import (
	"math"
	"sync"

	"github.com/markcheno/go-talib"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
)

// Manager accumulates price observations and derives annualized realized
// volatility from the stddev of log returns over the configured lookback.
// Prices are sampled once per valuation tick, so the annualization factor is
// derived from the tick cadence.
type Manager struct {
	cfg            config.VolatilityConfig
	periodsPerYear float64

	mu      sync.RWMutex
	history map[string][]float64
}

func NewManager(cfg config.VolatilityConfig, periodsPerYear float64) *Manager {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &Manager{
		cfg:            cfg,
		periodsPerYear: periodsPerYear,
		history:        make(map[string][]float64),
	}
}

// Observe appends a price sample, keeping one extra point beyond the lookback
// so the return series is exactly lookback long.
func (m *Manager) Observe(symbol string, price float64) {
	if price <= 0 {
		return
	}
	key := domain.NormalizeSymbol(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()
	window := append(m.history[key], price)
	if max := m.cfg.LookbackPeriod + 1; len(window) > max {
		window = window[len(window)-max:]
	}
	m.history[key] = window
}

// RealizedVol returns the annualized realized volatility, or false until the
// lookback window is full.
func (m *Manager) RealizedVol(symbol string) (float64, bool) {
	m.mu.RLock()
	window := m.history[domain.NormalizeSymbol(symbol)]
	m.mu.RUnlock()

	if len(window) < m.cfg.LookbackPeriod+1 {
		return 0, false
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}

	stddev := talib.StdDev(returns, len(returns), 1.0)
	perPeriod := stddev[len(stddev)-1]
	return perPeriod * math.Sqrt(m.periodsPerYear), true
}

// SizeMultiplier scales position sizing down in turbulent symbols: the ratio
// of the configured ceiling to realized vol, clamped to [min, max]. Symbols
// without enough history get a neutral 1.
func (m *Manager) SizeMultiplier(symbol string) float64 {
	vol, ok := m.RealizedVol(symbol)
	if !ok || vol <= 0 || m.cfg.MaxRealizedVol <= 0 {
		return 1
	}
	mult := m.cfg.MaxRealizedVol / vol
	if mult < m.cfg.MinMultiplier {
		return m.cfg.MinMultiplier
	}
	if mult > m.cfg.MaxMultiplier {
		return m.cfg.MaxMultiplier
	}
	return mult
}
