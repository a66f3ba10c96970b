package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/clock"
	"github.com/wkarimi/kodisha/adapters/memory"
	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/subscription"
)

func seedSub(t *testing.T, ledger *memory.Ledger, id string, expiresAt, createdAt time.Time, listings, featured int64) {
	t.Helper()
	err := ledger.Subscriptions().CreateAudited(context.Background(),
		subscription.Subscription{
			ID:                id,
			SubscriberID:      "tenant-1",
			PlanID:            "starter",
			StartedAt:         createdAt,
			ExpiresAt:         expiresAt,
			RemainingListings: listings,
			RemainingFeatured: featured,
			TotalListings:     listings,
			TotalFeatured:     featured,
			CreatedAt:         createdAt,
			UpdatedAt:         createdAt,
		},
		audit.Entry{
			ID:             "audit-" + id,
			Action:         audit.ActionGrant,
			ActorID:        "test",
			SubscriptionID: id,
			Reason:         "test seed",
			CreatedAt:      createdAt,
		},
	)
	if err != nil {
		t.Fatalf("seed subscription %s: %v", id, err)
	}
}

func TestConsume_SoonestExpiryFirst(t *testing.T) {
	ledger := memory.NewLedger()
	clk := clock.NewFake(startOfTest)
	svc := app.NewConsumeService(ledger.Subscriptions(), clk, nil, zerolog.Nop())

	seedSub(t, ledger, "far", startOfTest.Add(72*time.Hour), startOfTest, 5, 0)
	seedSub(t, ledger, "near", startOfTest.Add(24*time.Hour), startOfTest, 5, 0)

	sub, err := svc.Consume(context.Background(), "tenant-1", subscription.FieldListings)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sub.ID != "near" {
		t.Errorf("consumed from %s, want near (soonest expiry)", sub.ID)
	}
	if sub.RemainingListings != 4 {
		t.Errorf("remaining = %d, want 4", sub.RemainingListings)
	}
}

func TestConsume_SkipsDrainedCandidate(t *testing.T) {
	ledger := memory.NewLedger()
	clk := clock.NewFake(startOfTest)
	svc := app.NewConsumeService(ledger.Subscriptions(), clk, nil, zerolog.Nop())

	// The soonest-expiring subscription has listings but no featured left.
	seedSub(t, ledger, "near", startOfTest.Add(24*time.Hour), startOfTest, 5, 0)
	seedSub(t, ledger, "far", startOfTest.Add(72*time.Hour), startOfTest, 5, 2)

	sub, err := svc.Consume(context.Background(), "tenant-1", subscription.FieldFeatured)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sub.ID != "far" {
		t.Errorf("consumed from %s, want far", sub.ID)
	}
	if sub.RemainingFeatured != 1 {
		t.Errorf("remaining featured = %d, want 1", sub.RemainingFeatured)
	}
}

func TestConsume_NoQuotaAvailable(t *testing.T) {
	ledger := memory.NewLedger()
	clk := clock.NewFake(startOfTest)
	svc := app.NewConsumeService(ledger.Subscriptions(), clk, nil, zerolog.Nop())

	seedSub(t, ledger, "drained", startOfTest.Add(24*time.Hour), startOfTest, 0, 0)
	seedSub(t, ledger, "expired", startOfTest.Add(-time.Hour), startOfTest.Add(-31*24*time.Hour), 10, 2)

	_, err := svc.Consume(context.Background(), "tenant-1", subscription.FieldListings)
	if !errors.Is(err, app.ErrNoQuotaAvailable) {
		t.Errorf("err = %v, want ErrNoQuotaAvailable", err)
	}
}

func TestConsume_NoSubscriptions(t *testing.T) {
	ledger := memory.NewLedger()
	svc := app.NewConsumeService(ledger.Subscriptions(), clock.NewFake(startOfTest), nil, zerolog.Nop())

	_, err := svc.Consume(context.Background(), "tenant-1", subscription.FieldListings)
	if !errors.Is(err, app.ErrNoQuotaAvailable) {
		t.Errorf("err = %v, want ErrNoQuotaAvailable", err)
	}
}

func TestConsume_UnknownField(t *testing.T) {
	ledger := memory.NewLedger()
	svc := app.NewConsumeService(ledger.Subscriptions(), clock.NewFake(startOfTest), nil, zerolog.Nop())

	if _, err := svc.Consume(context.Background(), "tenant-1", subscription.QuotaField("bogus")); err == nil {
		t.Error("unknown field should be rejected")
	}
}

func TestConsume_LastUnitRace(t *testing.T) {
	ledger := memory.NewLedger()
	clk := clock.NewFake(startOfTest)
	svc := app.NewConsumeService(ledger.Subscriptions(), clk, nil, zerolog.Nop())

	// One unit, many racing consumers: exactly one may win.
	seedSub(t, ledger, "last", startOfTest.Add(24*time.Hour), startOfTest, 1, 0)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), "tenant-1", subscription.FieldListings)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, app.ErrNoQuotaAvailable):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if losses != workers-1 {
		t.Errorf("losses = %d, want %d", losses, workers-1)
	}

	sub, err := ledger.Subscriptions().Get(context.Background(), "last")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.RemainingListings != 0 {
		t.Errorf("remaining = %d, want 0 (never negative)", sub.RemainingListings)
	}
}
