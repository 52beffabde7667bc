// Package risk wires the admission pipeline into a single event-driven
// manager. All mutable session state (loss streaks, equity baselines, the
// breaker) is owned by one goroutine; proposals, broker updates, operator
// commands and the valuation ticker are serialized through its loop.
package risk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
	"tradeguard/internal/gateway/exchange"
	"tradeguard/internal/logger"
	"tradeguard/internal/risk/circuit"
	"tradeguard/internal/risk/filters"
	"tradeguard/internal/risk/liquidation"
	"tradeguard/internal/risk/pending"
	"tradeguard/internal/risk/portfoliostate"
	"tradeguard/internal/risk/sizing"
	"tradeguard/internal/risk/vol"
)

const stateID = "global"

// StateStore persists RiskState across restarts.
type StateStore interface {
	Save(ctx context.Context, state domain.RiskState) error
	Load(ctx context.Context, id string) (domain.RiskState, bool, error)
}

// Manager is the order-admission actor. External callers interact through
// Submit and the command methods; everything else happens inside runLoop.
type Manager struct {
	riskCfg   config.RiskConfig
	sizingCfg config.SizingConfig

	states     *portfoliostate.Manager
	exec       exchange.ExecutionService
	marketData exchange.MarketDataService
	chain      *filters.Chain
	vols       *vol.Manager
	liquidator *liquidation.Service
	pendings   *pending.Tracker
	store      StateStore

	symbols []string

	proposalCh chan domain.TradeProposal
	updateCh   chan domain.OrderUpdate
	cmdCh      chan Command
	stopCh     chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once

	// loop-owned state, never touched outside runLoop after Start
	state           domain.RiskState
	breaker         circuit.State
	perSymbolLosses map[string]int
	prices          map[string]decimal.Decimal
	ticker          *time.Ticker

	dropped atomic.Uint64
	now     func() time.Time
}

type Deps struct {
	States     *portfoliostate.Manager
	Exec       exchange.ExecutionService
	MarketData exchange.MarketDataService
	Chain      *filters.Chain
	Vols       *vol.Manager
	Liquidator *liquidation.Service
	Store      StateStore
	Symbols    []string
}

// NewManager validates the configuration, restores persisted session state
// and builds a manager ready to Start. A restored halt stays in force.
func NewManager(riskCfg config.RiskConfig, sizingCfg config.SizingConfig, deps Deps) (*Manager, error) {
	if err := riskCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	m := &Manager{
		riskCfg:         riskCfg,
		sizingCfg:       sizingCfg,
		states:          deps.States,
		exec:            deps.Exec,
		marketData:      deps.MarketData,
		chain:           deps.Chain,
		vols:            deps.Vols,
		liquidator:      deps.Liquidator,
		pendings:        pending.NewTracker(),
		store:           deps.Store,
		symbols:         deps.Symbols,
		proposalCh:      make(chan domain.TradeProposal, riskCfg.ProposalBuffer),
		updateCh:        make(chan domain.OrderUpdate, 64),
		cmdCh:           make(chan Command, 16),
		stopCh:          make(chan struct{}),
		state:           domain.NewRiskState(),
		breaker:         circuit.Normal(),
		perSymbolLosses: make(map[string]int),
		prices:          make(map[string]decimal.Decimal),
		now:             time.Now,
	}

	if m.store != nil {
		saved, found, err := m.store.Load(context.Background(), stateID)
		if err != nil {
			return nil, fmt.Errorf("restore risk state: %w", err)
		}
		if found {
			m.state = saved
			if saved.Halted {
				m.breaker = circuit.State{Status: circuit.StatusHalted, Reason: saved.HaltReason, TriggeredAt: saved.HaltedAt}
				logger.Warnf("risk: restored halted state from %s: %s", saved.HaltedAt.Format(time.RFC3339), saved.HaltReason)
			}
		}
	}
	return m, nil
}

// Start subscribes to broker order updates and launches the event loop.
func (m *Manager) Start(ctx context.Context) error {
	updates, err := m.exec.SubscribeOrderUpdates(ctx)
	if err != nil {
		return fmt.Errorf("subscribe order updates: %w", err)
	}

	m.wg.Add(1)
	go m.pumpUpdates(updates)

	m.wg.Add(1)
	go m.runLoop()

	logger.Infof("risk: manager started (valuation every %s, pending TTL %s)",
		m.riskCfg.ValuationInterval(), m.riskCfg.PendingOrderTTL())
	return nil
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Submit hands a proposal to the admission loop without blocking the caller.
// When the buffer is full the proposal is dropped and counted: a slow risk
// engine must shed load, not stall the strategy feeding it.
func (m *Manager) Submit(proposal domain.TradeProposal) bool {
	select {
	case m.proposalCh <- proposal:
		return true
	case <-m.stopCh:
		return false
	default:
		n := m.dropped.Add(1)
		proposalsTotal.WithLabelValues(outcomeDropped).Inc()
		logger.Warnf("risk: proposal buffer full, dropped %s %s (%d total)", proposal.Side, proposal.Symbol, n)
		return false
	}
}

// Dropped reports how many proposals have been shed under backpressure.
func (m *Manager) Dropped() uint64 { return m.dropped.Load() }

// UpdateConfigCmd applies a new risk and sizing configuration.
func (m *Manager) UpdateConfigCmd(ctx context.Context, riskCfg config.RiskConfig, sizingCfg config.SizingConfig) error {
	cmd := UpdateConfig{Risk: riskCfg, Sizing: sizingCfg, reply: make(chan error, 1)}
	return m.sendCommand(ctx, cmd, cmd.reply)
}

// TriggerHaltCmd halts the system and liquidates the book with market orders.
func (m *Manager) TriggerHaltCmd(ctx context.Context, reason string) error {
	cmd := TriggerHalt{Reason: reason, reply: make(chan error, 1)}
	return m.sendCommand(ctx, cmd, cmd.reply)
}

// ResetHaltCmd clears a halt and the loss streak.
func (m *Manager) ResetHaltCmd(ctx context.Context) error {
	cmd := ResetHalt{reply: make(chan error, 1)}
	return m.sendCommand(ctx, cmd, cmd.reply)
}

// Status reads the engine state through the loop, so the answer is always
// consistent with admission decisions in flight.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	q := statusQuery{reply: make(chan Status, 1)}
	select {
	case m.cmdCh <- q:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-m.stopCh:
		return Status{}, fmt.Errorf("risk manager is stopped")
	}
	select {
	case s := <-q.reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-m.stopCh:
		return Status{}, fmt.Errorf("risk manager stopped during status query")
	}
}

func (m *Manager) sendCommand(ctx context.Context, cmd Command, reply chan error) error {
	select {
	case m.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return fmt.Errorf("risk manager is stopped")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return fmt.Errorf("risk manager stopped during %s", cmd.Name())
	}
}

func (m *Manager) pumpUpdates(updates <-chan domain.OrderUpdate) {
	defer m.wg.Done()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				logger.Warnf("risk: order update stream closed")
				return
			}
			select {
			case m.updateCh <- u:
			case <-m.stopCh:
				return
			}
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) runLoop() {
	defer m.wg.Done()

	m.ticker = time.NewTicker(m.riskCfg.ValuationInterval())
	defer m.ticker.Stop()

	m.handleValuationTick()

	for {
		select {
		case p := <-m.proposalCh:
			m.handleProposal(p)
		case u := <-m.updateCh:
			m.handleOrderUpdate(u)
		case cmd := <-m.cmdCh:
			m.handleCommand(cmd)
		case <-m.ticker.C:
			m.handleValuationTick()
		case <-m.stopCh:
			logger.Infof("risk: manager stopping")
			m.persistState()
			return
		}
	}
}

// handleProposal runs the full admission pipeline for one proposal. Any
// rejection is final for the proposal but never for the system; broker
// failures are logged and the proposal is refused rather than retried.
func (m *Manager) handleProposal(p domain.TradeProposal) {
	if err := m.admit(p); err != nil {
		proposalsTotal.WithLabelValues(outcomeRejected).Inc()
		logger.Infof("risk: rejected %s %s: %v", p.Side, p.Symbol, err)
		return
	}
	proposalsTotal.WithLabelValues(outcomeAdmitted).Inc()
}

func (m *Manager) admit(p domain.TradeProposal) error {
	if m.breaker.IsHalted() {
		return fmt.Errorf("%w: %s", domain.ErrSystemHalted, m.breaker.Reason)
	}
	if !p.Price.IsPositive() {
		return &domain.LimitViolation{Filter: "sanity", Reason: fmt.Sprintf("non-positive price %s", p.Price)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.riskCfg.BrokerTimeout())
	defer cancel()
	snap, err := m.states.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("portfolio unavailable: %w", err)
	}

	equity := snap.Portfolio.TotalEquity(m.prices)

	qty, err := m.sizeProposal(p, snap.Portfolio, equity)
	if err != nil {
		return err
	}
	p.Quantity = qty

	entryPrice := decimal.Zero
	if pos, ok := snap.Portfolio.FindPosition(p.Symbol); ok {
		entryPrice = pos.AveragePrice
	}

	var reservation portfoliostate.Reservation
	if p.Side == domain.SideBuy {
		reservation, err = m.states.Reserve(p.Symbol, p.Notional())
		if err != nil {
			return err
		}
	}

	if err := m.chain.Check(filters.Context{
		Config:    m.riskCfg,
		Portfolio: snap.Portfolio,
		Proposal:  p,
		Prices:    m.prices,
		Pending:   m.pendings.BuyNotionalBySymbol(),
		Equity:    equity,
	}); err != nil {
		if reservation.ID != "" {
			m.states.Release(reservation)
		}
		return err
	}

	orderType := p.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeLimit
	}
	order := domain.NewOrder(p.Symbol, p.Side, p.Price, p.Quantity, orderType)
	m.pendings.Track(order, reservation, entryPrice, m.riskCfg.PendingOrderTTL(), m.now())
	pendingGauge.Set(float64(m.pendings.Len()))

	m.dispatchOrder(order)
	logger.Infof("risk: admitted %s %s %s at %s (reserved %s)",
		order.Side, order.Quantity, order.Symbol, order.Price, reservation.Amount)
	return nil
}

// sizeProposal computes the final quantity. Buys are sized from equity and
// scaled down by the volatility multiplier; sells are clamped to the held
// quantity so an over-eager exit signal cannot flip the position.
func (m *Manager) sizeProposal(p domain.TradeProposal, portfolio domain.Portfolio, equity decimal.Decimal) (decimal.Decimal, error) {
	if p.Side == domain.SideSell {
		pos, ok := portfolio.FindPosition(p.Symbol)
		if !ok || !pos.Quantity.IsPositive() {
			return decimal.Zero, &domain.LimitViolation{Filter: "sizing", Reason: fmt.Sprintf("no position in %s to sell", p.Symbol)}
		}
		qty := p.Quantity
		if !qty.IsPositive() || qty.GreaterThan(pos.Quantity) {
			qty = pos.Quantity
		}
		return qty, nil
	}

	qty := sizing.CalculateQuantity(m.sizingCfg, equity, p.Price)
	if m.vols != nil && m.riskCfg.Volatility.Enabled {
		mult := m.vols.SizeMultiplier(p.Symbol)
		if mult != 1 {
			qty = qty.Mul(decimal.NewFromFloat(mult)).Round(4)
		}
	}
	if !qty.IsPositive() {
		return decimal.Zero, &domain.LimitViolation{Filter: "sizing", Reason: "calculated quantity is zero"}
	}
	return qty, nil
}

// dispatchOrder submits to the broker off the loop goroutine. A submission
// failure comes back as a synthetic REJECTED update so the reservation is
// released through the same path as a broker rejection.
func (m *Manager) dispatchOrder(order domain.Order) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.riskCfg.BrokerTimeout())
		defer cancel()

		if err := m.exec.Execute(ctx, order); err != nil {
			logger.Errorf("risk: execution of %s %s failed: %v", order.Side, order.Symbol, err)
			update := domain.OrderUpdate{
				OrderID:   order.ID,
				Symbol:    order.Symbol,
				Side:      order.Side,
				Status:    domain.OrderStatusRejected,
				Timestamp: m.now(),
			}
			select {
			case m.updateCh <- update:
			case <-m.stopCh:
			}
		}
	}()
}

// handleOrderUpdate releases reservations on terminal updates and drives the
// consecutive-loss streak off sell fills.
func (m *Manager) handleOrderUpdate(u domain.OrderUpdate) {
	entryPrice := decimal.Zero
	switch u.Status {
	case domain.OrderStatusFilled, domain.OrderStatusCancelled, domain.OrderStatusRejected, domain.OrderStatusExpired:
		if settled, ok := m.pendings.OnFill(u.OrderID); ok {
			if settled.Reservation.ID != "" {
				m.states.Release(settled.Reservation)
			}
			entryPrice = settled.EntryPrice
		}
		pendingGauge.Set(float64(m.pendings.Len()))
	default:
		return
	}

	if u.Status == domain.OrderStatusFilled && u.Side == domain.SideSell {
		m.recordTradeOutcome(u, entryPrice)
		m.evaluateBreaker()
	}
}

// recordTradeOutcome classifies a sell fill as win or loss against the entry
// price captured at admission. A full exit is gone from the broker book by
// the time its fill arrives, so the classification must not depend on the
// current snapshot; fills the tracker never saw fall back to it.
func (m *Manager) recordTradeOutcome(u domain.OrderUpdate, entryPrice decimal.Decimal) {
	if !entryPrice.IsPositive() {
		snap, err := m.states.Snapshot(context.Background())
		if err != nil {
			logger.Warnf("risk: cannot classify fill for %s, portfolio unavailable: %v", u.Symbol, err)
			return
		}
		pos, ok := snap.Portfolio.FindPosition(u.Symbol)
		if !ok {
			return
		}
		entryPrice = pos.AveragePrice
	}
	if !entryPrice.IsPositive() || !u.FilledAvgPrice.IsPositive() {
		return
	}

	key := domain.NormalizeSymbol(u.Symbol)
	if u.FilledAvgPrice.LessThan(entryPrice) {
		m.state.ConsecutiveLosses++
		m.perSymbolLosses[key]++
		logger.Infof("risk: losing exit on %s (fill %s vs entry %s), streak global=%d symbol=%d",
			u.Symbol, u.FilledAvgPrice, entryPrice, m.state.ConsecutiveLosses, m.perSymbolLosses[key])
	} else {
		m.state.ConsecutiveLosses = 0
		delete(m.perSymbolLosses, key)
	}
	m.state.UpdatedAt = m.now()
}

// lossStreak returns the streak the breaker should judge, per the configured
// scope.
func (m *Manager) lossStreak() int {
	if m.riskCfg.ConsecutiveLossScope == config.LossScopePerSymbol {
		max := 0
		for _, n := range m.perSymbolLosses {
			if n > max {
				max = n
			}
		}
		return max
	}
	return m.state.ConsecutiveLosses
}

// handleValuationTick is the periodic housekeeping pass: mark the book,
// expire stale pendings, re-judge the breaker and persist. Broker failures
// here are transient; the next tick retries.
func (m *Manager) handleValuationTick() {
	now := m.now()
	ctx, cancel := context.WithTimeout(context.Background(), m.riskCfg.BrokerTimeout())
	defer cancel()

	if m.marketData != nil && len(m.symbols) > 0 {
		prices, err := m.marketData.GetPrices(ctx, m.symbols)
		if err != nil {
			logger.Warnf("risk: price fetch failed, valuing against last marks: %v", err)
		} else {
			for sym, price := range prices {
				key := domain.NormalizeSymbol(sym)
				m.prices[key] = price
				if m.vols != nil {
					m.vols.Observe(key, price.InexactFloat64())
				}
			}
		}
	}

	snap, err := m.states.Refresh(ctx)
	if err != nil {
		logger.Warnf("risk: portfolio refresh failed, retrying next tick: %v", err)
		return
	}

	for _, res := range m.pendings.Sweep(now) {
		logger.Warnf("risk: pending order TTL expired, releasing %s reserved for %s", res.Amount, res.Symbol)
		m.states.Release(res)
	}
	pendingGauge.Set(float64(m.pendings.Len()))

	equity := snap.Portfolio.TotalEquity(m.prices)
	m.updateBaselines(now, equity)

	equityGauge.Set(equity.InexactFloat64())
	reservedGauge.Set(m.states.TotalReserved().InexactFloat64())

	m.evaluateBreakerWith(equity)
	m.persistState()
}

// updateBaselines seeds the session on first valuation, rolls the daily
// baseline over at UTC midnight and advances the high-water mark.
func (m *Manager) updateBaselines(now time.Time, equity decimal.Decimal) {
	if !equity.IsPositive() {
		return
	}
	if m.state.SessionStartEquity.IsZero() {
		m.state.SessionStartEquity = equity
		m.state.DailyStartEquity = equity
		m.state.HighWaterMark = equity
		logger.Infof("risk: session baseline set at %s", equity)
	}
	if m.state.RolloverDaily(now, equity) {
		logger.Infof("risk: daily baseline rolled over to %s", equity)
	}
	if equity.GreaterThan(m.state.HighWaterMark) {
		m.state.HighWaterMark = equity
	}
	m.state.UpdatedAt = now
}

func (m *Manager) evaluateBreaker() {
	snap, err := m.states.Snapshot(context.Background())
	if err != nil {
		logger.Warnf("risk: breaker evaluation skipped, portfolio unavailable: %v", err)
		return
	}
	m.evaluateBreakerWith(snap.Portfolio.TotalEquity(m.prices))
}

func (m *Manager) evaluateBreakerWith(equity decimal.Decimal) {
	next, event := circuit.Evaluate(m.breaker, circuit.Input{
		CurrentEquity:      equity,
		DailyStartEquity:   m.state.DailyStartEquity,
		HighWaterMark:      m.state.HighWaterMark,
		ConsecutiveLosses:  m.lossStreak(),
		ConsecutiveLossLim: m.riskCfg.ConsecutiveLossLimit,
		MaxDailyLossPct:    m.riskCfg.MaxDailyLossPct,
		MaxDrawdownPct:     m.riskCfg.MaxDrawdownPct,
	}, m.now())
	m.breaker = next

	if event != nil {
		m.onTrip(event.Reason, event.TriggeredAt, false)
	}
}

// onTrip records the halt, persists it before anything else, and flattens
// the book. The persist-first ordering means a crash mid-liquidation still
// restarts halted.
func (m *Manager) onTrip(reason string, at time.Time, panicMode bool) {
	logger.Errorf("risk: HALT: %s", reason)
	haltsTotal.Inc()

	m.state.Halted = true
	m.state.HaltReason = reason
	m.state.HaltedAt = at
	m.state.UpdatedAt = at
	m.persistState()

	if m.liquidator == nil {
		return
	}
	snap, err := m.states.Snapshot(context.Background())
	if err != nil {
		logger.Errorf("risk: cannot liquidate, portfolio unavailable: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.liquidator.LiquidatePortfolio(ctx, reason, snap.Portfolio, panicMode)
}

func (m *Manager) handleCommand(cmd Command) {
	logger.Debugf("risk: command %s", cmd.Name())
	switch c := cmd.(type) {
	case UpdateConfig:
		c.reply <- m.applyConfig(c.Risk, c.Sizing)
	case TriggerHalt:
		c.reply <- m.manualHalt(c.Reason)
	case ResetHalt:
		c.reply <- m.resetHalt()
	case statusQuery:
		c.reply <- m.buildStatus()
	default:
		logger.Warnf("risk: unknown command %s", cmd.Name())
	}
}

func (m *Manager) applyConfig(riskCfg config.RiskConfig, sizingCfg config.SizingConfig) error {
	if err := riskCfg.Validate(); err != nil {
		logger.Warnf("risk: rejected config update: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	oldInterval := m.riskCfg.ValuationInterval()
	m.riskCfg = riskCfg
	m.sizingCfg = sizingCfg
	if newInterval := riskCfg.ValuationInterval(); newInterval != oldInterval && m.ticker != nil {
		m.ticker.Reset(newInterval)
	}
	logger.Infof("risk: configuration updated")
	return nil
}

func (m *Manager) manualHalt(reason string) error {
	if m.breaker.IsHalted() {
		return nil
	}
	if reason == "" {
		reason = "manual halt"
	}
	now := m.now()
	m.breaker = circuit.State{Status: circuit.StatusHalted, Reason: reason, TriggeredAt: now}
	m.onTrip(reason, now, true)
	return nil
}

func (m *Manager) resetHalt() error {
	if !m.breaker.IsHalted() {
		return nil
	}
	m.breaker = circuit.Reset(m.breaker)
	m.state.Halted = false
	m.state.HaltReason = ""
	m.state.HaltedAt = time.Time{}
	m.state.ConsecutiveLosses = 0
	m.perSymbolLosses = make(map[string]int)
	m.state.UpdatedAt = m.now()
	m.persistState()
	logger.Warnf("risk: halt reset by operator, resuming admissions")
	return nil
}

func (m *Manager) buildStatus() Status {
	equity := decimal.Zero
	if snap, err := m.states.Snapshot(context.Background()); err == nil {
		equity = snap.Portfolio.TotalEquity(m.prices)
	}
	return Status{
		Halted:            m.breaker.IsHalted(),
		HaltReason:        m.breaker.Reason,
		HaltedAt:          m.breaker.TriggeredAt,
		ConsecutiveLosses: m.lossStreak(),
		Equity:            equity,
		DailyStartEquity:  m.state.DailyStartEquity,
		HighWaterMark:     m.state.HighWaterMark,
		TotalReserved:     m.states.TotalReserved(),
		PendingOrders:     m.pendings.Len(),
		DroppedProposals:  m.dropped.Load(),
	}
}

func (m *Manager) persistState() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, m.state); err != nil {
		logger.Errorf("risk: state persist failed: %v", err)
	}
}
