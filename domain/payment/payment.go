// Package payment provides the payment value type and its status state machine.
// All functions are deterministic with no side effects; persistence and the
// provider round-trip live in adapters.
package payment

import (
	"errors"
	"time"
)

// Status represents payment state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusExpired Status = "EXPIRED"
)

// ErrInvalidTransition is returned when a transition would leave a terminal
// state. Callback handlers absorb it for repeated terminal deliveries.
var ErrInvalidTransition = errors.New("invalid payment transition")

// Payment records one charge attempt against a plan.
type Payment struct {
	ID           string
	SubscriberID string
	PlanID       string
	Amount       int64 // minor currency units
	PhoneNumber  string
	Status       Status
	ProviderRef  string // provider-side correlation id, may arrive after initiation
	Receipt      string // provider receipt code, set only on SUCCESS
	FailReason   string
	CreatedAt    time.Time
	TerminalAt   *time.Time
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// CanTransition checks whether a payment may move from one status to another.
// Transitions are monotonic: PENDING -> {SUCCESS, FAILED, EXPIRED}, nothing
// leaves a terminal state. This is a PURE function.
func CanTransition(from, to Status) error {
	if !to.Valid() || to == StatusPending {
		return ErrInvalidTransition
	}
	if from != StatusPending {
		return ErrInvalidTransition
	}
	return nil
}

// Terminal reports whether the payment has reached a terminal state.
func (p Payment) Terminal() bool {
	return p.Status.IsTerminal()
}

// StalePending reports whether a pending payment is older than timeout at now.
// Stale pending payments are expired by the sweep so polling loops terminate
// even if the provider never calls back. This is a PURE function.
func StalePending(p Payment, now time.Time, timeout time.Duration) bool {
	return p.Status == StatusPending && now.Sub(p.CreatedAt) >= timeout
}
