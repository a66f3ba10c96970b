package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/metrics"
	"github.com/wkarimi/kodisha/domain/quota"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// maxConsumePasses bounds the re-read loop when decrements keep losing races.
const maxConsumePasses = 3

// ConsumeService is the only legal entry point for spending a quota unit.
// Selection picks the soonest-expiring subscription with capacity; the
// decrement itself is the store's atomic conditional update, so two callers
// racing for the last unit cannot both win. After any lost race the candidate
// list is re-read before trying again.
type ConsumeService struct {
	subs    ports.SubscriptionStore
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewConsumeService creates a consumption coordinator. metrics may be nil.
func NewConsumeService(subs ports.SubscriptionStore, clock ports.Clock, m *metrics.Collector, logger zerolog.Logger) *ConsumeService {
	return &ConsumeService{subs: subs, clock: clock, metrics: m, logger: logger}
}

// Consume spends one unit of the given field for the subscriber and returns
// the decremented subscription. Returns ErrNoQuotaAvailable when no active
// subscription has capacity; the caller must not publish.
func (s *ConsumeService) Consume(ctx context.Context, subscriberID string, field subscription.QuotaField) (subscription.Subscription, error) {
	if !field.Valid() {
		return subscription.Subscription{}, fmt.Errorf("unknown quota field %q", field)
	}

	for pass := 0; pass < maxConsumePasses; pass++ {
		if pass > 0 && s.metrics != nil {
			s.metrics.ConsumeRetries.Inc()
		}

		now := s.clock.Now()
		list, err := s.subs.ListBySubscriber(ctx, subscriberID)
		if err != nil {
			return subscription.Subscription{}, err
		}

		raced := false
		for _, cand := range quota.Candidates(list, now) {
			if cand.Remaining(field) <= 0 {
				continue
			}

			sub, err := s.subs.Decrement(ctx, cand.ID, field, 1, s.clock.Now())
			if err == nil {
				s.count(field, "ok")
				s.logger.Debug().
					Str("subscriber_id", subscriberID).
					Str("subscription_id", sub.ID).
					Str("field", string(field)).
					Msg("quota consumed")
				return sub, nil
			}
			if errors.Is(err, subscription.ErrQuotaExhausted) || errors.Is(err, subscription.ErrInactive) {
				// Someone beat us to this candidate (or it expired under
				// us); re-read before considering the next one.
				raced = true
				break
			}
			return subscription.Subscription{}, err
		}

		if !raced {
			break
		}
	}

	s.count(field, "no_quota")
	return subscription.Subscription{}, fmt.Errorf("subscriber %s, field %s: %w", subscriberID, field, ErrNoQuotaAvailable)
}

func (s *ConsumeService) count(field subscription.QuotaField, outcome string) {
	if s.metrics != nil {
		s.metrics.ConsumeTotal.WithLabelValues(string(field), outcome).Inc()
	}
}
