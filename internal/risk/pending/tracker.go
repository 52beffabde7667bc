// Package pending tracks admitted-but-unfilled orders and the capital
// reservations backing them.
package pending

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/domain"
	"tradeguard/internal/risk/portfoliostate"
)

type entry struct {
	order       domain.Order
	reservation portfoliostate.Reservation
	entryPrice  decimal.Decimal
	expiresAt   time.Time
}

// Settled is what leaves the tracker on a terminal update: the reservation to
// release and the position's average entry price captured at admission, so a
// fill can be classified even after the broker book no longer holds the
// position.
type Settled struct {
	Order       domain.Order
	Reservation portfoliostate.Reservation
	EntryPrice  decimal.Decimal
}

// Tracker maps order IDs to their reservations. A reservation leaves the
// tracker exactly once: either through a terminal order update or through a
// TTL sweep, never both.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]entry)}
}

// Track registers an order with its reservation, the entry price of any
// position it exits, and its TTL deadline.
func (t *Tracker) Track(order domain.Order, res portfoliostate.Reservation, entryPrice decimal.Decimal, ttl time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[order.ID] = entry{order: order, reservation: res, entryPrice: entryPrice, expiresAt: now.Add(ttl)}
}

// OnFill removes the order on a terminal update and hands back its settlement
// data. Unknown IDs (already swept, or orders the tracker never saw) return
// ok=false.
func (t *Tracker) OnFill(orderID string) (Settled, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[orderID]
	if !ok {
		return Settled{}, false
	}
	delete(t.entries, orderID)
	return Settled{Order: e.order, Reservation: e.reservation, EntryPrice: e.entryPrice}, true
}

// Sweep removes every entry whose TTL elapsed and returns the orphaned
// reservations so the caller can release them.
func (t *Tracker) Sweep(now time.Time) []portfoliostate.Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []portfoliostate.Reservation
	for id, e := range t.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, e.reservation)
			delete(t.entries, id)
		}
	}
	return expired
}

// BuyNotionalBySymbol sums the notional of in-flight buy orders per
// normalized symbol. The admission filters count this alongside held
// positions so exposure caps bind across orders that have not filled yet.
func (t *Tracker) BuyNotionalBySymbol() map[string]decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(t.entries))
	for _, e := range t.entries {
		if e.order.Side != domain.SideBuy {
			continue
		}
		key := domain.NormalizeSymbol(e.order.Symbol)
		out[key] = out[key].Add(e.order.Price.Mul(e.order.Quantity))
	}
	return out
}

// Len reports how many orders are still awaiting a terminal update.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
