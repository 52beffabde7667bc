// Package portfoliostate caches broker-reported portfolio state and tracks
// in-flight capital reservations so concurrent proposals cannot double-spend
// buying power.
package portfoliostate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
	"tradeguard/internal/gateway/exchange"
	"tradeguard/internal/logger"
)

// Snapshot is a point-in-time clone of the cached portfolio. Version bumps on
// every refresh so readers can detect that the world moved underneath them.
type Snapshot struct {
	Portfolio domain.Portfolio
	Version   uint64
	TakenAt   time.Time
}

// Reservation is a provisional allocation of buying power for an
// admitted-but-unfilled order. Released exactly once: on fill confirmation,
// on rejection, or on TTL expiry.
type Reservation struct {
	ID     string
	Symbol string
	Amount decimal.Decimal
}

// Manager guards the cached portfolio and the reservation ledger with a
// single mutex. Reserve/Release stay correct under direct concurrent callers,
// independent of the risk manager's single-threaded event loop.
type Manager struct {
	exec      exchange.ExecutionService
	staleness time.Duration
	timeout   time.Duration

	mu           sync.Mutex
	portfolio    domain.Portfolio
	version      uint64
	fetchedAt    time.Time
	reservations map[string]Reservation

	now func() time.Time
}

func NewManager(exec exchange.ExecutionService, staleness, timeout time.Duration) *Manager {
	return &Manager{
		exec:         exec,
		staleness:    staleness,
		timeout:      timeout,
		portfolio:    domain.NewPortfolio(),
		reservations: make(map[string]Reservation),
		now:          time.Now,
	}
}

// Refresh fetches a fresh portfolio from the broker, bounded by the
// configured timeout. A deadline overrun surfaces as ErrBrokerTimeout; any
// other failure as ErrBrokerUnavailable. The mutex is not held across the
// network call.
func (m *Manager) Refresh(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	portfolio, err := m.exec.GetPortfolio(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Snapshot{}, fmt.Errorf("%w: portfolio fetch exceeded %s: %v", domain.ErrBrokerTimeout, m.timeout, err)
		}
		return Snapshot{}, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, err)
	}

	m.mu.Lock()
	m.version++
	m.portfolio = portfolio.Clone()
	m.fetchedAt = m.now()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	logger.Debugf("portfoliostate: refreshed to v%d (cash=%s positions=%d)",
		snap.Version, snap.Portfolio.Cash, len(snap.Portfolio.Positions))
	return snap, nil
}

// Snapshot returns the cached state if it is younger than the staleness
// window, refreshing first otherwise.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	fresh := !m.fetchedAt.IsZero() && m.now().Sub(m.fetchedAt) <= m.staleness
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if fresh {
		return snap, nil
	}
	return m.Refresh(ctx)
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Portfolio: m.portfolio.Clone(),
		Version:   m.version,
		TakenAt:   m.fetchedAt,
	}
}

// Reserve atomically checks that total reserved plus amount fits within the
// cash balance and records the reservation. This check-and-record must be a
// single critical section: it is what stops N concurrent proposals from
// jointly overspending a budget only one of them fits in.
func (m *Manager) Reserve(symbol string, amount decimal.Decimal) (Reservation, error) {
	if !amount.IsPositive() {
		return Reservation{}, fmt.Errorf("%w: non-positive reservation %s for %s", domain.ErrInsufficientCapital, amount, symbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.portfolio.Cash.Sub(m.totalReservedLocked())
	if amount.GreaterThan(available) {
		return Reservation{}, fmt.Errorf("%w: need %s, available %s (reserved %s)",
			domain.ErrInsufficientCapital, amount, available, m.totalReservedLocked())
	}

	res := Reservation{ID: uuid.NewString(), Symbol: symbol, Amount: amount}
	m.reservations[res.ID] = res
	logger.Debugf("portfoliostate: reserved %s for %s (token %s)", amount, symbol, res.ID[:8])
	return res, nil
}

// Release removes a reservation. Idempotent: releasing an unknown or
// already-released token logs a warning instead of failing, because a
// double-release indicates a bug upstream but must not corrupt the ledger.
func (m *Manager) Release(res Reservation) {
	m.mu.Lock()
	_, ok := m.reservations[res.ID]
	if ok {
		delete(m.reservations, res.ID)
	}
	m.mu.Unlock()

	if !ok {
		logger.Warnf("portfoliostate: release of unknown reservation %s (%s %s)", res.ID, res.Symbol, res.Amount)
		return
	}
	logger.Debugf("portfoliostate: released %s for %s (token %s)", res.Amount, res.Symbol, res.ID[:8])
}

// TotalReserved sums all outstanding reservations.
func (m *Manager) TotalReserved() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalReservedLocked()
}

// AvailableCash is the cash balance net of reservations.
func (m *Manager) AvailableCash() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolio.Cash.Sub(m.totalReservedLocked())
}

func (m *Manager) totalReservedLocked() decimal.Decimal {
	total := decimal.Zero
	for _, r := range m.reservations {
		total = total.Add(r.Amount)
	}
	return total
}
