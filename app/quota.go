package app

import (
	"context"

	"github.com/wkarimi/kodisha/domain/quota"
	"github.com/wkarimi/kodisha/ports"
)

// QuotaService is the read side: it folds a subscriber's subscriptions into
// a snapshot. The snapshot is recomputed on every call and never cached, so
// a slightly stale replica read is the worst case and the consumption path
// re-validates against the store anyway.
type QuotaService struct {
	subs  ports.SubscriptionStore
	clock ports.Clock
}

// NewQuotaService creates a quota read service.
func NewQuotaService(subs ports.SubscriptionStore, clock ports.Clock) *QuotaService {
	return &QuotaService{subs: subs, clock: clock}
}

// Snapshot returns the aggregate quota view for a subscriber.
func (s *QuotaService) Snapshot(ctx context.Context, subscriberID string) (quota.Snapshot, error) {
	list, err := s.subs.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return quota.Snapshot{}, err
	}
	return quota.Fold(subscriberID, list, s.clock.Now()), nil
}
