package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// SubscriptionStore is the subscription view over a Ledger.
type SubscriptionStore struct {
	l *Ledger
}

// Get retrieves a subscription by ID.
func (s *SubscriptionStore) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return s.getLocked(id)
}

func (s *SubscriptionStore) getLocked(id string) (subscription.Subscription, error) {
	sub, ok := s.l.subs[id]
	if !ok {
		return subscription.Subscription{}, ports.ErrNotFound
	}
	return sub, nil
}

// ListBySubscriber returns a subscriber's subscriptions, expires_at ascending
// with created_at as tie-break.
func (s *SubscriptionStore) ListBySubscriber(ctx context.Context, subscriberID string) ([]subscription.Subscription, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	var out []subscription.Subscription
	for _, sub := range s.l.subs {
		if sub.SubscriberID == subscriberID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Decrement atomically spends units of one quota field.
func (s *SubscriptionStore) Decrement(ctx context.Context, id string, field subscription.QuotaField, by int64, now time.Time) (subscription.Subscription, error) {
	if !field.Valid() {
		return subscription.Subscription{}, fmt.Errorf("unknown quota field %q", field)
	}
	if by <= 0 {
		return subscription.Subscription{}, fmt.Errorf("decrement by must be positive")
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	sub, err := s.getLocked(id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if !sub.Active(now) {
		return sub, subscription.ErrInactive
	}

	switch field {
	case subscription.FieldListings:
		if sub.RemainingListings-by < 0 {
			return sub, subscription.ErrQuotaExhausted
		}
		sub.RemainingListings -= by
	case subscription.FieldFeatured:
		if sub.RemainingFeatured-by < 0 {
			return sub, subscription.ErrQuotaExhausted
		}
		sub.RemainingFeatured -= by
	}
	sub.UpdatedAt = now
	s.l.subs[id] = sub
	return sub, nil
}

// CreateAudited stores an admin-granted subscription and its audit entry
// atomically.
func (s *SubscriptionStore) CreateAudited(ctx context.Context, sub subscription.Subscription, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	if _, ok := s.l.subs[sub.ID]; ok {
		return fmt.Errorf("subscription %s already exists", sub.ID)
	}
	if sub.SourcePaymentID != "" {
		if _, dup := s.l.byPaymentID[sub.SourcePaymentID]; dup {
			return subscription.ErrDuplicateGrant
		}
		s.l.byPaymentID[sub.SourcePaymentID] = sub.ID
	}
	s.l.subs[sub.ID] = sub
	s.l.audits = append(s.l.audits, entry)
	return nil
}

// ExtendAudited pushes the expiry out by days and writes the audit entry
// atomically. The new expiry is derived from the stored one under the ledger
// lock, so concurrent extends accumulate.
func (s *SubscriptionStore) ExtendAudited(ctx context.Context, id string, days int, entry audit.Entry) (subscription.Subscription, error) {
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	sub, err := s.getLocked(id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	sub.ExpiresAt = subscription.ExtendedExpiry(entry.CreatedAt, sub.ExpiresAt, days)
	sub.UpdatedAt = entry.CreatedAt
	s.l.subs[id] = sub
	s.l.audits = append(s.l.audits, entry)
	return sub, nil
}

// ResetUsageAudited restores the remaining counters to the given totals and
// writes the audit entry atomically. Expiry is untouched.
func (s *SubscriptionStore) ResetUsageAudited(ctx context.Context, id string, listings, featured int64, entry audit.Entry) (subscription.Subscription, error) {
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	sub, err := s.getLocked(id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	sub.RemainingListings = listings
	sub.RemainingFeatured = featured
	sub.UpdatedAt = entry.CreatedAt
	s.l.subs[id] = sub
	s.l.audits = append(s.l.audits, entry)
	return sub, nil
}

// RevokeAudited marks the subscription revoked and writes the audit entry
// atomically.
func (s *SubscriptionStore) RevokeAudited(ctx context.Context, id string, entry audit.Entry) (subscription.Subscription, error) {
	if err := entry.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	sub, err := s.getLocked(id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	t := entry.CreatedAt
	sub.RevokedAt = &t
	sub.UpdatedAt = entry.CreatedAt
	s.l.subs[id] = sub
	s.l.audits = append(s.l.audits, entry)
	return sub, nil
}

// List returns subscriptions for export, newest first.
func (s *SubscriptionStore) List(ctx context.Context, f ports.ExportFilter) ([]subscription.Subscription, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	var out []subscription.Subscription
	for _, sub := range s.l.subs {
		if !f.From.IsZero() && sub.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !sub.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
