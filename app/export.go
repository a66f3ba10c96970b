package app

import (
	"context"

	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// ExportService serves bulk reads of the ledgers for finance reconciliation.
// It adds no behavior over the stores beyond capping unbounded reads.
type ExportService struct {
	payments ports.PaymentStore
	subs     ports.SubscriptionStore
}

const defaultExportLimit = 1000

// NewExportService creates the reporting facade.
func NewExportService(payments ports.PaymentStore, subs ports.SubscriptionStore) *ExportService {
	return &ExportService{payments: payments, subs: subs}
}

// Payments returns payment rows matching the filter, newest first.
func (s *ExportService) Payments(ctx context.Context, f ports.ExportFilter) ([]payment.Payment, error) {
	if f.Limit <= 0 {
		f.Limit = defaultExportLimit
	}
	return s.payments.List(ctx, f)
}

// Subscriptions returns subscription rows matching the filter, newest first.
func (s *ExportService) Subscriptions(ctx context.Context, f ports.ExportFilter) ([]subscription.Subscription, error) {
	if f.Limit <= 0 {
		f.Limit = defaultExportLimit
	}
	return s.subs.List(ctx, f)
}
