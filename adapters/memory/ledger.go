package memory

import (
	"sync"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// Ledger holds payments, subscriptions and the audit trail behind one mutex.
// The single lock is what lets Settle and the audited admin mutations touch
// two tables atomically, mirroring the SQLite adapter's transactions. The
// typed stores returned by Payments, Subscriptions and Audit are thin views
// over the same state.
type Ledger struct {
	mu sync.Mutex

	payments      map[string]payment.Payment
	byProviderRef map[string]string // providerRef -> paymentID

	subs        map[string]subscription.Subscription
	byPaymentID map[string]string // sourcePaymentID -> subscriptionID

	audits []audit.Entry
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		payments:      make(map[string]payment.Payment),
		byProviderRef: make(map[string]string),
		subs:          make(map[string]subscription.Subscription),
		byPaymentID:   make(map[string]string),
	}
}

// Payments returns the payment store view.
func (l *Ledger) Payments() *PaymentStore { return &PaymentStore{l: l} }

// Subscriptions returns the subscription store view.
func (l *Ledger) Subscriptions() *SubscriptionStore { return &SubscriptionStore{l: l} }

// Audit returns the audit store view.
func (l *Ledger) Audit() *AuditStore { return &AuditStore{l: l} }

// Ensure interface compliance.
var (
	_ ports.PaymentStore      = (*PaymentStore)(nil)
	_ ports.SubscriptionStore = (*SubscriptionStore)(nil)
	_ ports.AuditStore        = (*AuditStore)(nil)
)
