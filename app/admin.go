package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/metrics"
	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// AdminService performs manual subscription interventions. Every mutation
// requires an actor and a reason and writes its audit entry in the same
// storage transaction as the change; there is no unaudited path.
type AdminService struct {
	plans   ports.PlanStore
	subs    ports.SubscriptionStore
	audits  ports.AuditStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewAdminService creates the admin override service. metrics may be nil.
func NewAdminService(plans ports.PlanStore, subs ports.SubscriptionStore, audits ports.AuditStore, clock ports.Clock, idGen ports.IDGenerator, m *metrics.Collector, logger zerolog.Logger) *AdminService {
	return &AdminService{
		plans:   plans,
		subs:    subs,
		audits:  audits,
		clock:   clock,
		idGen:   idGen,
		metrics: m,
		logger:  logger,
	}
}

// Grant creates a subscription for a subscriber without a payment, using the
// plan's quotas and duration. The plan may be inactive; admins can grant
// retired packages.
func (s *AdminService) Grant(ctx context.Context, subscriberID, planID, actorID, reason string) (subscription.Subscription, error) {
	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("load plan %s: %w", planID, err)
	}

	now := s.clock.Now()
	sub := subscription.FromGrant(s.idGen.New(), subscriberID, p, now)
	entry := audit.Entry{
		ID:             s.idGen.New(),
		Action:         audit.ActionGrant,
		ActorID:        actorID,
		SubscriptionID: sub.ID,
		Reason:         reason,
		CreatedAt:      now,
	}
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	if err := s.subs.CreateAudited(ctx, sub, entry); err != nil {
		return subscription.Subscription{}, err
	}

	s.count(audit.ActionGrant)
	s.logger.Info().
		Str("subscription_id", sub.ID).
		Str("subscriber_id", subscriberID).
		Str("plan_id", planID).
		Str("actor_id", actorID).
		Msg("admin grant")
	return sub, nil
}

// Extend pushes a subscription's expiry forward by days. An expired
// subscription reactivates from now; a live one keeps its banked days.
func (s *AdminService) Extend(ctx context.Context, subscriptionID string, days int, actorID, reason string) (subscription.Subscription, error) {
	if days <= 0 {
		return subscription.Subscription{}, fmt.Errorf("extension days must be positive, got %d", days)
	}

	now := s.clock.Now()
	entry := s.entry(audit.ActionExtend, actorID, subscriptionID, reason, now)
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	// The new expiry is computed inside the store transaction so two
	// concurrent extends accumulate instead of overwriting each other.
	sub, err := s.subs.ExtendAudited(ctx, subscriptionID, days, entry)
	if err != nil {
		return subscription.Subscription{}, err
	}

	s.count(audit.ActionExtend)
	s.logger.Info().
		Str("subscription_id", subscriptionID).
		Int("days", days).
		Time("expires_at", sub.ExpiresAt).
		Str("actor_id", actorID).
		Msg("admin extend")
	return sub, nil
}

// ResetUsage restores the remaining counters to the totals frozen at grant
// time. Expiry is untouched.
func (s *AdminService) ResetUsage(ctx context.Context, subscriptionID, actorID, reason string) (subscription.Subscription, error) {
	cur, err := s.subs.Get(ctx, subscriptionID)
	if err != nil {
		return subscription.Subscription{}, err
	}

	now := s.clock.Now()
	entry := s.entry(audit.ActionResetUsage, actorID, subscriptionID, reason, now)
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	sub, err := s.subs.ResetUsageAudited(ctx, subscriptionID, cur.TotalListings, cur.TotalFeatured, entry)
	if err != nil {
		return subscription.Subscription{}, err
	}

	s.count(audit.ActionResetUsage)
	s.logger.Info().
		Str("subscription_id", subscriptionID).
		Str("actor_id", actorID).
		Msg("admin reset usage")
	return sub, nil
}

// Revoke deactivates a subscription immediately. Revocation is permanent.
func (s *AdminService) Revoke(ctx context.Context, subscriptionID, actorID, reason string) (subscription.Subscription, error) {
	now := s.clock.Now()
	entry := s.entry(audit.ActionRevoke, actorID, subscriptionID, reason, now)
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	sub, err := s.subs.RevokeAudited(ctx, subscriptionID, entry)
	if err != nil {
		return subscription.Subscription{}, err
	}

	s.count(audit.ActionRevoke)
	s.logger.Info().
		Str("subscription_id", subscriptionID).
		Str("actor_id", actorID).
		Msg("admin revoke")
	return sub, nil
}

// AuditTrail returns audit entries matching the filter, newest first.
func (s *AdminService) AuditTrail(ctx context.Context, f ports.AuditFilter) ([]audit.Entry, error) {
	return s.audits.List(ctx, f)
}

func (s *AdminService) entry(action audit.Action, actorID, subscriptionID, reason string, now time.Time) audit.Entry {
	return audit.Entry{
		ID:             s.idGen.New(),
		Action:         action,
		ActorID:        actorID,
		SubscriptionID: subscriptionID,
		Reason:         reason,
		CreatedAt:      now,
	}
}

func (s *AdminService) count(action audit.Action) {
	if s.metrics != nil {
		s.metrics.AdminMutations.WithLabelValues(string(action)).Inc()
	}
}
