// Package subscription provides the subscription value type and the pure
// policies over it: grant construction, activity, quota bounds and the extend
// rule. Atomic mutation lives in the stores.
package subscription

import (
	"errors"
	"time"

	"github.com/wkarimi/kodisha/domain/plan"
)

// Sentinel errors surfaced by stores and services.
var (
	// ErrQuotaExhausted means a decrement would take a counter negative.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrInactive means the subscription is expired or revoked.
	ErrInactive = errors.New("subscription inactive")

	// ErrDuplicateGrant means a subscription already exists for the source
	// payment. This should never occur in correct operation; treat it as a
	// data-integrity failure, not a business rejection.
	ErrDuplicateGrant = errors.New("duplicate grant for payment")
)

// QuotaField selects which counter a consumption targets.
type QuotaField string

const (
	FieldListings QuotaField = "listings"
	FieldFeatured QuotaField = "featured"
)

// Valid reports whether f is a known quota field.
func (f QuotaField) Valid() bool {
	return f == FieldListings || f == FieldFeatured
}

// Subscription is one granted package instance. Never deleted; expiry is a
// time-based state and revocation an explicit admin action.
type Subscription struct {
	ID                string
	SubscriberID      string
	PlanID            string
	SourcePaymentID   string // empty for admin grants
	StartedAt         time.Time
	ExpiresAt         time.Time
	RemainingListings int64
	RemainingFeatured int64
	TotalListings     int64 // plan totals frozen at grant time
	TotalFeatured     int64
	RevokedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Active reports whether the subscription can serve quota at the given time.
func (s Subscription) Active(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Remaining returns the counter for a quota field.
func (s Subscription) Remaining(f QuotaField) int64 {
	if f == FieldFeatured {
		return s.RemainingFeatured
	}
	return s.RemainingListings
}

// FromPayment builds the subscription granted by a successful payment.
// Quotas start at the plan totals and the validity window opens at now.
// This is a PURE function; the caller supplies the id.
func FromPayment(id, subscriberID, paymentID string, p plan.Plan, now time.Time) Subscription {
	s := fromPlan(id, subscriberID, p, now)
	s.SourcePaymentID = paymentID
	return s
}

// FromGrant builds an admin-granted subscription with no source payment.
// This is a PURE function.
func FromGrant(id, subscriberID string, p plan.Plan, now time.Time) Subscription {
	return fromPlan(id, subscriberID, p, now)
}

func fromPlan(id, subscriberID string, p plan.Plan, now time.Time) Subscription {
	return Subscription{
		ID:                id,
		SubscriberID:      subscriberID,
		PlanID:            p.ID,
		StartedAt:         now,
		ExpiresAt:         now.AddDate(0, 0, p.DurationDays),
		RemainingListings: p.TotalListings,
		RemainingFeatured: p.TotalFeatured,
		TotalListings:     p.TotalListings,
		TotalFeatured:     p.TotalFeatured,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ExtendedExpiry computes the new expiry for an extension of days.
// Extending an expired subscription reactivates it from now; extending a live
// one pushes the existing expiry forward, so banked days are never lost.
// This is a PURE function.
func ExtendedExpiry(now, current time.Time, days int) time.Time {
	base := current
	if now.After(base) {
		base = now
	}
	return base.AddDate(0, 0, days)
}
