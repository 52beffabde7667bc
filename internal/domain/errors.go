package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the admission pipeline. Broker errors are transient and
// retried on the next tick; limit violations and halted-state rejections are
// terminal for the proposal but not for the system; only ErrConfigInvalid is
// fatal, and only at construction.
var (
	// ErrBrokerUnavailable: the execution service call failed outright.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrBrokerTimeout: the call exceeded its deadline. Distinct from
	// ErrBrokerUnavailable so callers can tell a hung resource from a plain
	// I/O failure.
	ErrBrokerTimeout = errors.New("broker call timed out")

	// ErrInsufficientCapital: a reservation would exceed available equity.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrSystemHalted: the circuit breaker is open; every proposal is
	// rejected until an operator reset.
	ErrSystemHalted = errors.New("system halted")

	// ErrConfigInvalid: contradictory risk configuration.
	ErrConfigInvalid = errors.New("invalid risk configuration")
)

// LimitViolation is a risk-filter rejection with a machine-parseable reason.
type LimitViolation struct {
	Filter string
	Reason string
}

func (e *LimitViolation) Error() string {
	return fmt.Sprintf("limit violation [%s]: %s", e.Filter, e.Reason)
}
