// Package circuit implements the halt state machine guarding the admission
// pipeline. Transitions are one-directional within a session: once Halted,
// only an explicit operator reset returns the system to Normal. There is no
// automatic recovery; a financial system must not silently resume risk-taking.
package circuit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status int

const (
	StatusNormal Status = iota
	StatusHalted
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "NORMAL"
	case StatusHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// State is the breaker's current position. Reason and TriggeredAt are only
// meaningful when Status is StatusHalted.
type State struct {
	Status      Status
	Reason      string
	TriggeredAt time.Time
}

func Normal() State {
	return State{Status: StatusNormal}
}

func (s State) IsHalted() bool {
	return s.Status == StatusHalted
}

// TripEvent is emitted exactly once, on the Normal -> Halted edge. The caller
// uses it to trigger liquidation.
type TripEvent struct {
	Reason      string
	TriggeredAt time.Time
}

// Input is everything a transition decision needs. The breaker itself holds
// no counters; loss streaks and equity baselines live in the risk state.
type Input struct {
	CurrentEquity      decimal.Decimal
	DailyStartEquity   decimal.Decimal
	HighWaterMark      decimal.Decimal
	ConsecutiveLosses  int
	ConsecutiveLossLim int
	MaxDailyLossPct    float64
	MaxDrawdownPct     float64
}

// Evaluate returns the next state and, on a fresh trip, the event describing
// it. A state that is already Halted stays Halted and never re-emits.
func Evaluate(s State, in Input, now time.Time) (State, *TripEvent) {
	switch s.Status {
	case StatusHalted:
		return s, nil
	case StatusNormal:
		if reason, tripped := check(in); tripped {
			next := State{Status: StatusHalted, Reason: reason, TriggeredAt: now}
			return next, &TripEvent{Reason: reason, TriggeredAt: now}
		}
		return s, nil
	default:
		return s, nil
	}
}

// Reset returns the breaker to Normal. Operator-initiated only.
func Reset(s State) State {
	return Normal()
}

func check(in Input) (string, bool) {
	if in.ConsecutiveLossLim > 0 && in.ConsecutiveLosses >= in.ConsecutiveLossLim {
		return fmt.Sprintf("consecutive loss limit reached: %d trades (limit %d)",
			in.ConsecutiveLosses, in.ConsecutiveLossLim), true
	}

	if in.DailyStartEquity.IsPositive() {
		dailyLoss := in.CurrentEquity.Sub(in.DailyStartEquity).Div(in.DailyStartEquity)
		limit := decimal.NewFromFloat(in.MaxDailyLossPct)
		if dailyLoss.LessThan(limit.Neg()) {
			return fmt.Sprintf("daily loss limit breached: %s%% (limit %s%%)",
				dailyLoss.Mul(decimal.NewFromInt(100)).Round(2),
				limit.Mul(decimal.NewFromInt(100)).Round(2)), true
		}
	}

	if in.HighWaterMark.IsPositive() {
		drawdown := in.CurrentEquity.Sub(in.HighWaterMark).Div(in.HighWaterMark)
		limit := decimal.NewFromFloat(in.MaxDrawdownPct)
		if drawdown.LessThan(limit.Neg()) {
			return fmt.Sprintf("max drawdown breached: %s%% (limit %s%%)",
				drawdown.Mul(decimal.NewFromInt(100)).Round(2),
				limit.Mul(decimal.NewFromInt(100)).Round(2)), true
		}
	}

	return "", false
}
