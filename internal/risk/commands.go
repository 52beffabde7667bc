package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeguard/internal/config"
)

// Command is an operator or system action routed through the manager's event
// loop so it runs interleaved with admissions instead of racing them.
type Command interface {
	Name() string
}

// UpdateConfig swaps the risk and sizing configuration wholesale. The new
// config is validated before it takes effect; an invalid one is rejected and
// the old config stays live.
type UpdateConfig struct {
	Risk   config.RiskConfig
	Sizing config.SizingConfig
	reply  chan error
}

func (UpdateConfig) Name() string { return "update_config" }

// TriggerHalt is a manual kill switch. It trips the breaker and liquidates
// the book in panic mode (market orders, no passive exits).
type TriggerHalt struct {
	Reason string
	reply  chan error
}

func (TriggerHalt) Name() string { return "trigger_halt" }

// ResetHalt returns a halted system to normal operation and clears the loss
// streak. Operator-initiated only.
type ResetHalt struct {
	reply chan error
}

func (ResetHalt) Name() string { return "reset_halt" }

type statusQuery struct {
	reply chan Status
}

func (statusQuery) Name() string { return "status_query" }

// Status is a point-in-time view of the engine for the admin surface.
type Status struct {
	Halted            bool            `json:"halted"`
	HaltReason        string          `json:"halt_reason,omitempty"`
	HaltedAt          time.Time       `json:"halted_at,omitzero"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	Equity            decimal.Decimal `json:"equity"`
	DailyStartEquity  decimal.Decimal `json:"daily_start_equity"`
	HighWaterMark     decimal.Decimal `json:"high_water_mark"`
	TotalReserved     decimal.Decimal `json:"total_reserved"`
	PendingOrders     int             `json:"pending_orders"`
	DroppedProposals  uint64          `json:"dropped_proposals"`
}
