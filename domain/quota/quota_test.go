package quota_test

import (
	"testing"
	"time"

	"github.com/wkarimi/kodisha/domain/quota"
	"github.com/wkarimi/kodisha/domain/subscription"
)

func sub(id string, expiresAt, createdAt time.Time, listings, featured int64) subscription.Subscription {
	return subscription.Subscription{
		ID:                id,
		SubscriberID:      "tenant-1",
		ExpiresAt:         expiresAt,
		CreatedAt:         createdAt,
		RemainingListings: listings,
		RemainingFeatured: featured,
		TotalListings:     listings,
		TotalFeatured:     featured,
	}
}

func TestFold_SumsActiveOnly(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	subs := []subscription.Subscription{
		sub("a", now.Add(48*time.Hour), now.Add(-time.Hour), 5, 1),
		sub("b", now.Add(24*time.Hour), now.Add(-2*time.Hour), 3, 0),
		sub("expired", now.Add(-time.Hour), now.Add(-72*time.Hour), 100, 100),
	}

	snap := quota.Fold("tenant-1", subs, now)

	if snap.ActiveCount != 2 {
		t.Errorf("ActiveCount = %d, want 2", snap.ActiveCount)
	}
	if snap.RemainingListings != 8 {
		t.Errorf("RemainingListings = %d, want 8", snap.RemainingListings)
	}
	if snap.RemainingFeatured != 1 {
		t.Errorf("RemainingFeatured = %d, want 1", snap.RemainingFeatured)
	}
	if snap.ExpiresAtSoonest == nil || !snap.ExpiresAtSoonest.Equal(now.Add(24*time.Hour)) {
		t.Errorf("ExpiresAtSoonest = %v, want %v", snap.ExpiresAtSoonest, now.Add(24*time.Hour))
	}
}

func TestFold_NoActiveSubscriptions(t *testing.T) {
	now := time.Now().UTC()

	snap := quota.Fold("tenant-1", nil, now)
	if snap.ActiveCount != 0 || snap.RemainingListings != 0 {
		t.Error("empty fold should be all zeros")
	}
	if snap.ExpiresAtSoonest != nil {
		t.Error("ExpiresAtSoonest should be nil without active subscriptions")
	}
}

func TestFold_TieBreakOnCreatedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sameExpiry := now.Add(24 * time.Hour)

	// Both expire at the same instant; the earlier-created one wins.
	subs := []subscription.Subscription{
		sub("later", sameExpiry, now.Add(-time.Hour), 1, 0),
		sub("earlier", sameExpiry, now.Add(-2*time.Hour), 1, 0),
	}

	snap := quota.Fold("tenant-1", subs, now)
	if snap.ExpiresAtSoonest == nil || !snap.ExpiresAtSoonest.Equal(sameExpiry) {
		t.Fatalf("ExpiresAtSoonest = %v, want %v", snap.ExpiresAtSoonest, sameExpiry)
	}

	// The tie-break is observable through Candidates order.
	ordered := quota.Candidates(subs, now)
	if ordered[0].ID != "earlier" {
		t.Errorf("first candidate = %s, want earlier", ordered[0].ID)
	}
}

func TestCandidates_SoonestExpiryFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	subs := []subscription.Subscription{
		sub("far", now.Add(72*time.Hour), now, 1, 0),
		sub("near", now.Add(24*time.Hour), now, 1, 0),
		sub("mid", now.Add(48*time.Hour), now, 1, 0),
		sub("expired", now.Add(-time.Hour), now, 1, 0),
	}

	got := quota.Candidates(subs, now)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("candidate[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestCandidates_DoesNotMutateInput(t *testing.T) {
	now := time.Now().UTC()
	subs := []subscription.Subscription{
		sub("b", now.Add(48*time.Hour), now, 1, 0),
		sub("a", now.Add(24*time.Hour), now, 1, 0),
	}

	quota.Candidates(subs, now)
	if subs[0].ID != "b" {
		t.Error("Candidates must not reorder its input")
	}
}
