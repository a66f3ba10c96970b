// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/domain/subscription"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets such as the admin API token.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ExportFilter bounds bulk reads for reporting.
// Zero times mean unbounded; empty status means all statuses.
type ExportFilter struct {
	From   time.Time
	To     time.Time
	Status string
	Limit  int
}

// PlanStore persists the plan catalog.
type PlanStore interface {
	// Get retrieves a plan by ID, active or not.
	Get(ctx context.Context, id string) (plan.Plan, error)

	// ListActive returns plans currently purchasable, cheapest first.
	ListActive(ctx context.Context) ([]plan.Plan, error)

	// Create stores a new plan. Plans are immutable once referenced.
	Create(ctx context.Context, p plan.Plan) error

	// Deactivate hides a plan from new purchases.
	Deactivate(ctx context.Context, id string) error
}

// PaymentStore persists payment attempts with a strict state machine.
type PaymentStore interface {
	// Create stores a new payment in PENDING.
	Create(ctx context.Context, p payment.Payment) error

	// Get retrieves a payment by ID.
	Get(ctx context.Context, id string) (payment.Payment, error)

	// GetByProviderRef retrieves a payment by its provider correlation id.
	GetByProviderRef(ctx context.Context, ref string) (payment.Payment, error)

	// SetProviderRef records the provider correlation id after initiation.
	SetProviderRef(ctx context.Context, id, ref string) error

	// Transition moves a payment to a terminal status with compare-and-set
	// semantics: it fails with payment.ErrInvalidTransition if the payment is
	// already terminal, which makes at-least-once callbacks idempotent.
	Transition(ctx context.Context, id string, to payment.Status, failReason string, at time.Time) (payment.Payment, error)

	// Settle records the SUCCESS transition and the granted subscription in
	// one storage transaction. It fails with payment.ErrInvalidTransition if
	// the payment is already terminal and subscription.ErrDuplicateGrant if a
	// subscription already references the payment.
	Settle(ctx context.Context, id, receipt string, sub subscription.Subscription, at time.Time) (payment.Payment, error)

	// ListPendingBefore returns PENDING payments created before the cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]payment.Payment, error)

	// List returns payments for export, newest first.
	List(ctx context.Context, f ExportFilter) ([]payment.Payment, error)
}

// SubscriptionStore persists granted package instances and the atomic
// mutation primitives over them. All admin mutations write their audit entry
// in the same transaction as the change.
type SubscriptionStore interface {
	// Get retrieves a subscription by ID.
	Get(ctx context.Context, id string) (subscription.Subscription, error)

	// ListBySubscriber returns all of a subscriber's subscriptions,
	// expires_at ascending with created_at as tie-break.
	ListBySubscriber(ctx context.Context, subscriberID string) ([]subscription.Subscription, error)

	// Decrement atomically spends units of one quota field. It fails with
	// subscription.ErrQuotaExhausted when the post-decrement value would go
	// negative and subscription.ErrInactive when the subscription is expired
	// or revoked at now. Concurrent decrements on the last unit must not both
	// succeed.
	Decrement(ctx context.Context, id string, field subscription.QuotaField, by int64, now time.Time) (subscription.Subscription, error)

	// CreateAudited stores an admin-granted subscription and its audit entry
	// atomically.
	CreateAudited(ctx context.Context, sub subscription.Subscription, entry audit.Entry) error

	// ExtendAudited pushes the expiry out by days and writes the audit entry
	// atomically. The new expiry is computed from the stored expiry inside
	// the store's transaction, as max(entry.CreatedAt, expires_at) plus days,
	// so concurrent extends accumulate rather than overwrite each other.
	ExtendAudited(ctx context.Context, id string, days int, entry audit.Entry) (subscription.Subscription, error)

	// ResetUsageAudited restores the remaining counters to the given totals
	// and writes the audit entry atomically. Expiry is untouched.
	ResetUsageAudited(ctx context.Context, id string, listings, featured int64, entry audit.Entry) (subscription.Subscription, error)

	// RevokeAudited marks the subscription revoked at the entry's timestamp
	// and writes the audit entry atomically.
	RevokeAudited(ctx context.Context, id string, entry audit.Entry) (subscription.Subscription, error)

	// List returns subscriptions for export, newest first.
	List(ctx context.Context, f ExportFilter) ([]subscription.Subscription, error)
}

// AuditStore reads the append-only audit trail. Writes happen through the
// audited SubscriptionStore primitives so they share the mutation transaction.
type AuditStore interface {
	// List returns audit entries, newest first.
	List(ctx context.Context, f AuditFilter) ([]audit.Entry, error)
}

// AuditFilter bounds audit queries.
type AuditFilter struct {
	ActorID string
	Action  audit.Action
	From    time.Time
	To      time.Time
	Limit   int
}

// -----------------------------------------------------------------------------
// Payment Provider Port
// -----------------------------------------------------------------------------

// ErrInvalidPhone is returned when a number fails provider format validation.
var ErrInvalidPhone = errors.New("invalid phone number")

// ChargeRequest asks the provider to push a payment prompt to a phone.
type ChargeRequest struct {
	PaymentID   string // our correlation id, echoed back in the callback
	PhoneNumber string
	Amount      int64
	Description string
}

// ChargeAck is the provider's synchronous acknowledgement of a push.
type ChargeAck struct {
	ProviderRef string // provider-side correlation id
	Message     string // human message to show the payer
}

// CallbackOutcome is the provider's final word on a charge.
type CallbackOutcome string

const (
	OutcomeSuccess CallbackOutcome = "success"
	OutcomeFailed  CallbackOutcome = "failed"
)

// CallbackResult is a normalized provider callback.
type CallbackResult struct {
	ProviderRef string
	Outcome     CallbackOutcome
	Receipt     string // set on success
	FailReason  string // set on failure
}

// PaymentProvider abstracts the STK-push mobile-money provider.
type PaymentProvider interface {
	// Name returns the provider name (e.g., "daraja", "sandbox").
	Name() string

	// ValidatePhone checks the number against the provider's format rules.
	// Returns ErrInvalidPhone on rejection.
	ValidatePhone(msisdn string) error

	// Push initiates the payment prompt. The call blocks on a network
	// round-trip and must honour the context deadline.
	Push(ctx context.Context, req ChargeRequest) (ChargeAck, error)

	// ParseCallback parses and validates an inbound provider callback.
	ParseCallback(payload []byte) (CallbackResult, error)
}
