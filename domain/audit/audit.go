// Package audit provides the append-only audit trail types.
package audit

import (
	"errors"
	"time"
)

// ErrReasonRequired is returned when an admin mutation carries no reason.
var ErrReasonRequired = errors.New("audit reason required")

// Action identifies what an admin actor did.
type Action string

const (
	ActionGrant      Action = "grant"
	ActionExtend     Action = "extend"
	ActionResetUsage Action = "reset_usage"
	ActionRevoke     Action = "revoke"
)

// Entry is one audit record. Entries are append-only and written in the same
// transaction as the mutation they describe.
type Entry struct {
	ID             string
	Action         Action
	ActorID        string
	SubscriptionID string
	PaymentID      string
	Reason         string
	CreatedAt      time.Time
}

// Validate checks the fields every admin mutation must carry.
func (e Entry) Validate() error {
	if e.Reason == "" {
		return ErrReasonRequired
	}
	if e.ActorID == "" {
		return errors.New("audit actor required")
	}
	if e.Action == "" {
		return errors.New("audit action required")
	}
	return nil
}
