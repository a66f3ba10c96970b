package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/clock"
	"github.com/wkarimi/kodisha/adapters/idgen"
	"github.com/wkarimi/kodisha/adapters/memory"
	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

type adminFixture struct {
	svc    *app.AdminService
	ledger *memory.Ledger
	clock  *clock.Fake
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	plans := memory.NewPlanStore()
	if err := plans.Create(context.Background(), plan.Plan{
		ID:            "starter",
		Name:          "Starter",
		Price:         50000,
		DurationDays:  30,
		TotalListings: 10,
		TotalFeatured: 2,
		IsActive:      true,
		CreatedAt:     startOfTest,
		UpdatedAt:     startOfTest,
	}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	ledger := memory.NewLedger()
	clk := clock.NewFake(startOfTest)
	svc := app.NewAdminService(
		plans, ledger.Subscriptions(), ledger.Audit(),
		clk, idgen.NewSequential("id-"), nil, zerolog.Nop(),
	)
	return &adminFixture{svc: svc, ledger: ledger, clock: clk}
}

func (f *adminFixture) auditEntries(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := f.ledger.Audit().List(context.Background(), ports.AuditFilter{})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	return entries
}

func TestGrant(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "goodwill after downtime")
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if sub.SourcePaymentID != "" {
		t.Error("admin grant must have no source payment")
	}
	if sub.RemainingListings != 10 || sub.RemainingFeatured != 2 {
		t.Errorf("quotas = %d/%d, want 10/2", sub.RemainingListings, sub.RemainingFeatured)
	}
	if !sub.ExpiresAt.Equal(startOfTest.AddDate(0, 0, 30)) {
		t.Errorf("expires = %v, want +30d", sub.ExpiresAt)
	}

	entries := f.auditEntries(t)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != audit.ActionGrant || e.ActorID != "admin-1" || e.SubscriptionID != sub.ID {
		t.Errorf("audit entry mismatch: %+v", e)
	}
}

func TestGrant_ReasonRequired(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.svc.Grant(context.Background(), "tenant-1", "starter", "admin-1", "")
	if !errors.Is(err, audit.ErrReasonRequired) {
		t.Errorf("err = %v, want ErrReasonRequired", err)
	}
	if len(f.auditEntries(t)) != 0 {
		t.Error("rejected grant must write nothing")
	}
	subs, _ := f.ledger.Subscriptions().ListBySubscriber(context.Background(), "tenant-1")
	if len(subs) != 0 {
		t.Error("rejected grant must not create a subscription")
	}
}

func TestExtend_LiveSubscription(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")

	sub, err := f.svc.Extend(ctx, granted.ID, 10, "admin-1", "loyalty bonus")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	want := granted.ExpiresAt.AddDate(0, 0, 10)
	if !sub.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v (banked days kept)", sub.ExpiresAt, want)
	}
}

func TestExtend_ExpiredSubscription(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")
	f.clock.Set(granted.ExpiresAt.Add(24 * time.Hour))

	sub, err := f.svc.Extend(ctx, granted.ID, 10, "admin-1", "win-back")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	want := f.clock.Now().AddDate(0, 0, 10)
	if !sub.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v (restart from now)", sub.ExpiresAt, want)
	}
	if !sub.Active(f.clock.Now()) {
		t.Error("extended subscription should be active again")
	}
}

func TestExtend_Validation(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")

	if _, err := f.svc.Extend(ctx, granted.ID, 0, "admin-1", "r"); err == nil {
		t.Error("zero days must be rejected")
	}
	if _, err := f.svc.Extend(ctx, granted.ID, -5, "admin-1", "r"); err == nil {
		t.Error("negative days must be rejected")
	}
	if _, err := f.svc.Extend(ctx, "missing", 5, "admin-1", "r"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResetUsage(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")
	if _, err := f.ledger.Subscriptions().Decrement(ctx, granted.ID, subscription.FieldListings, 7, f.clock.Now()); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	sub, err := f.svc.ResetUsage(ctx, granted.ID, "admin-1", "billing dispute resolution")
	if err != nil {
		t.Fatalf("ResetUsage: %v", err)
	}
	if sub.RemainingListings != 10 || sub.RemainingFeatured != 2 {
		t.Errorf("remaining = %d/%d, want restored to 10/2", sub.RemainingListings, sub.RemainingFeatured)
	}
	if !sub.ExpiresAt.Equal(granted.ExpiresAt) {
		t.Error("reset must not touch expiry")
	}
}

func TestRevoke(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")

	sub, err := f.svc.Revoke(ctx, granted.ID, "admin-1", "fraudulent payment")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if sub.RevokedAt == nil {
		t.Fatal("RevokedAt not set")
	}
	if sub.Active(f.clock.Now()) {
		t.Error("revoked subscription must be inactive")
	}

	// Revoked quota is unusable immediately.
	if _, err := f.ledger.Subscriptions().Decrement(ctx, granted.ID, subscription.FieldListings, 1, f.clock.Now()); !errors.Is(err, subscription.ErrInactive) {
		t.Errorf("decrement after revoke = %v, want ErrInactive", err)
	}
}

func TestAuditTrail_Filters(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	granted, _ := f.svc.Grant(ctx, "tenant-1", "starter", "admin-1", "seed")
	f.clock.Advance(time.Minute)
	if _, err := f.svc.Extend(ctx, granted.ID, 5, "admin-2", "bonus"); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	all, err := f.svc.AuditTrail(ctx, ports.AuditFilter{})
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("entries = %d, want 2", len(all))
	}
	// Newest first.
	if all[0].Action != audit.ActionExtend {
		t.Errorf("first entry = %s, want extend", all[0].Action)
	}

	byActor, _ := f.svc.AuditTrail(ctx, ports.AuditFilter{ActorID: "admin-1"})
	if len(byActor) != 1 || byActor[0].Action != audit.ActionGrant {
		t.Errorf("actor filter returned %+v", byActor)
	}

	byAction, _ := f.svc.AuditTrail(ctx, ports.AuditFilter{Action: audit.ActionExtend})
	if len(byAction) != 1 {
		t.Errorf("action filter returned %d entries, want 1", len(byAction))
	}
}
