package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the persistent session state of the risk engine: loss streaks,
// equity baselines and the halt flag. It survives restarts so a halted system
// stays halted until an operator resets it.
type RiskState struct {
	ID                 string
	SessionStartEquity decimal.Decimal
	DailyStartEquity   decimal.Decimal
	HighWaterMark      decimal.Decimal
	ConsecutiveLosses  int
	ReferenceDate      time.Time // date of the daily baseline, UTC midnight
	Halted             bool
	HaltReason         string
	HaltedAt           time.Time
	UpdatedAt          time.Time
}

func NewRiskState() RiskState {
	now := time.Now().UTC()
	return RiskState{
		ID:                 "global",
		SessionStartEquity: decimal.Zero,
		DailyStartEquity:   decimal.Zero,
		HighWaterMark:      decimal.Zero,
		ReferenceDate:      now.Truncate(24 * time.Hour),
		UpdatedAt:          now,
	}
}

// RolloverDaily rebases the daily baseline at the given time if the UTC date
// has changed. The high-water mark is intentionally preserved: drawdown is
// tracked per session, not per day. Returns true if a reset happened.
func (s *RiskState) RolloverDaily(now time.Time, equity decimal.Decimal) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.After(s.ReferenceDate) {
		return false
	}
	s.ReferenceDate = day
	s.DailyStartEquity = equity
	s.UpdatedAt = now
	return true
}
