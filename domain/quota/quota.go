// Package quota provides pure read-side functions over a subscriber's
// subscriptions: the aggregate snapshot and the consumption candidate order.
// All functions are deterministic with no side effects.
package quota

import (
	"sort"
	"time"

	"github.com/wkarimi/kodisha/domain/subscription"
)

// Snapshot is the aggregate view over a subscriber's active subscriptions.
// Recomputed on every read, never cached beyond a single request.
type Snapshot struct {
	SubscriberID      string
	ActiveCount       int
	RemainingListings int64
	RemainingFeatured int64
	TotalListings     int64
	TotalFeatured     int64
	ExpiresAtSoonest  *time.Time
}

// Fold combines a subscriber's subscriptions into a Snapshot at the given time.
// Inactive entries are skipped. When two active entries expire at the identical
// instant the earlier-created one determines the soonest expiry, which keeps
// the result deterministic. This is a PURE function.
func Fold(subscriberID string, subs []subscription.Subscription, now time.Time) Snapshot {
	snap := Snapshot{SubscriberID: subscriberID}

	var soonest *subscription.Subscription
	for i := range subs {
		s := &subs[i]
		if !s.Active(now) {
			continue
		}
		snap.ActiveCount++
		snap.RemainingListings += s.RemainingListings
		snap.RemainingFeatured += s.RemainingFeatured
		snap.TotalListings += s.TotalListings
		snap.TotalFeatured += s.TotalFeatured

		if soonest == nil || earlier(*s, *soonest) {
			soonest = s
		}
	}
	if soonest != nil {
		t := soonest.ExpiresAt
		snap.ExpiresAtSoonest = &t
	}
	return snap
}

// Candidates orders active subscriptions for consumption: soonest expiry first
// so quota closest to being wasted is spent first, with created-at as a stable
// tie-break. Returns a new slice. This is a PURE function.
func Candidates(subs []subscription.Subscription, now time.Time) []subscription.Subscription {
	out := make([]subscription.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return earlier(out[i], out[j])
	})
	return out
}

func earlier(a, b subscription.Subscription) bool {
	if !a.ExpiresAt.Equal(b.ExpiresAt) {
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
