package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/clock"
	"github.com/wkarimi/kodisha/adapters/idgen"
	"github.com/wkarimi/kodisha/adapters/memory"
	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
)

var startOfTest = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// mockProvider is a scriptable PaymentProvider.
type mockProvider struct {
	pushErr       error
	pushCalls     int
	ref           string
	invalidMSISDN string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) ValidatePhone(msisdn string) error {
	if msisdn == m.invalidMSISDN {
		return ports.ErrInvalidPhone
	}
	return nil
}

func (m *mockProvider) Push(ctx context.Context, req ports.ChargeRequest) (ports.ChargeAck, error) {
	m.pushCalls++
	if m.pushErr != nil {
		return ports.ChargeAck{}, m.pushErr
	}
	ref := m.ref
	if ref == "" {
		ref = "ref-" + req.PaymentID
	}
	return ports.ChargeAck{ProviderRef: ref, Message: "prompt sent"}, nil
}

// callbacks use the ledger's provider ref and a flat JSON body the mock parses.
type mockCallback struct {
	ProviderRef string `json:"provider_ref"`
	Outcome     string `json:"outcome"`
	Receipt     string `json:"receipt"`
	FailReason  string `json:"fail_reason"`
}

func (m *mockProvider) ParseCallback(payload []byte) (ports.CallbackResult, error) {
	var cb mockCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return ports.CallbackResult{}, err
	}
	res := ports.CallbackResult{
		ProviderRef: cb.ProviderRef,
		Receipt:     cb.Receipt,
		FailReason:  cb.FailReason,
	}
	if cb.Outcome == "success" {
		res.Outcome = ports.OutcomeSuccess
	} else {
		res.Outcome = ports.OutcomeFailed
	}
	return res, nil
}

type fixture struct {
	svc      *app.PaymentService
	plans    *memory.PlanStore
	ledger   *memory.Ledger
	provider *mockProvider
	clock    *clock.Fake
}

func newFixture(t *testing.T) *fixture {
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
	provider := &mockProvider{}
	clk := clock.NewFake(startOfTest)

	svc := app.NewPaymentService(
		plans, ledger.Payments(), provider, clk, idgen.NewSequential("pay-"),
		nil, zerolog.Nop(),
		app.PaymentConfig{PendingTimeout: 2 * time.Minute, PushTimeout: 10 * time.Second},
	)

	return &fixture{svc: svc, plans: plans, ledger: ledger, provider: provider, clock: clk}
}

func callback(ref, outcome, receipt, reason string) []byte {
	b, _ := json.Marshal(mockCallback{ProviderRef: ref, Outcome: outcome, Receipt: receipt, FailReason: reason})
	return b
}

func TestInitiate_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.Payment.Status != payment.StatusPending {
		t.Errorf("status = %s, want PENDING", res.Payment.Status)
	}
	if res.Payment.Amount != 50000 {
		t.Errorf("amount = %d, want 50000", res.Payment.Amount)
	}

	stored, err := f.ledger.Payments().Get(ctx, res.Payment.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.ProviderRef == "" {
		t.Error("provider ref not recorded")
	}
}

func TestInitiate_UnknownPlan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), "tenant-1", "nope", "0712345678")
	if !errors.Is(err, plan.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestInitiate_InactivePlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.plans.Deactivate(ctx, "starter"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	if !errors.Is(err, plan.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestInitiate_InvalidPhone(t *testing.T) {
	f := newFixture(t)
	f.provider.invalidMSISDN = "bogus"

	_, err := f.svc.Initiate(context.Background(), "tenant-1", "starter", "bogus")
	if !errors.Is(err, ports.ErrInvalidPhone) {
		t.Errorf("err = %v, want ErrInvalidPhone", err)
	}
}

func TestInitiate_ProviderRejection_MarksFailed(t *testing.T) {
	f := newFixture(t)
	f.provider.pushErr = errors.New("invalid shortcode")
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	if !errors.Is(err, app.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	// One retry on transport errors.
	if f.provider.pushCalls != 2 {
		t.Errorf("push calls = %d, want 2", f.provider.pushCalls)
	}

	list, err := f.ledger.Payments().ListPendingBefore(ctx, f.clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("pending payments = %d, want 0 (rejection must mark FAILED)", len(list))
	}
}

func TestInitiate_ProviderTimeout_StaysPending(t *testing.T) {
	f := newFixture(t)
	f.provider.pushErr = context.DeadlineExceeded
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	if err != nil {
		t.Fatalf("Initiate after timeout: %v (timeout must not fail the payment)", err)
	}
	// Timeouts are not retried: the prompt may have landed.
	if f.provider.pushCalls != 1 {
		t.Errorf("push calls = %d, want 1", f.provider.pushCalls)
	}

	stored, err := f.ledger.Payments().Get(ctx, res.Payment.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != payment.StatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}
}

func TestHandleCallback_Success_GrantsSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	ref := "ref-" + res.Payment.ID

	p, err := f.svc.HandleCallback(ctx, callback(ref, "success", "RCPT1", ""))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if p.Status != payment.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", p.Status)
	}
	if p.Receipt != "RCPT1" {
		t.Errorf("receipt = %q, want RCPT1", p.Receipt)
	}

	subs, err := f.ledger.Subscriptions().ListBySubscriber(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListBySubscriber: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs))
	}
	if subs[0].SourcePaymentID != res.Payment.ID {
		t.Errorf("source payment = %s, want %s", subs[0].SourcePaymentID, res.Payment.ID)
	}
	if subs[0].RemainingListings != 10 || subs[0].RemainingFeatured != 2 {
		t.Errorf("quotas = %d/%d, want 10/2", subs[0].RemainingListings, subs[0].RemainingFeatured)
	}
}

func TestHandleCallback_DuplicateSuccess_OneSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	ref := "ref-" + res.Payment.ID

	if _, err := f.svc.HandleCallback(ctx, callback(ref, "success", "RCPT1", "")); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	// The provider redelivers. Must be a no-op, not an error, not a second grant.
	if _, err := f.svc.HandleCallback(ctx, callback(ref, "success", "RCPT1", "")); err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}

	subs, _ := f.ledger.Subscriptions().ListBySubscriber(ctx, "tenant-1")
	if len(subs) != 1 {
		t.Errorf("subscriptions = %d, want exactly 1", len(subs))
	}
}

func TestHandleCallback_FailedAfterSuccess_Absorbed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	ref := "ref-" + res.Payment.ID

	if _, err := f.svc.HandleCallback(ctx, callback(ref, "success", "RCPT1", "")); err != nil {
		t.Fatalf("success callback: %v", err)
	}
	if _, err := f.svc.HandleCallback(ctx, callback(ref, "failed", "", "late failure")); err != nil {
		t.Fatalf("late failed callback: %v", err)
	}

	p, _ := f.ledger.Payments().Get(ctx, res.Payment.ID)
	if p.Status != payment.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS to stick", p.Status)
	}
}

func TestHandleCallback_Failed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	ref := "ref-" + res.Payment.ID

	p, err := f.svc.HandleCallback(ctx, callback(ref, "failed", "", "insufficient funds"))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if p.Status != payment.StatusFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
	if p.FailReason != "insufficient funds" {
		t.Errorf("fail reason = %q", p.FailReason)
	}

	subs, _ := f.ledger.Subscriptions().ListBySubscriber(ctx, "tenant-1")
	if len(subs) != 0 {
		t.Errorf("failed payment must not grant, got %d subscriptions", len(subs))
	}
}

func TestHandleCallback_UnknownRef(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), callback("no-such-ref", "success", "R", ""))
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckStatus_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")

	// Before the timeout: still pending.
	p, err := f.svc.CheckStatus(ctx, res.Payment.ID)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if p.Status != payment.StatusPending {
		t.Errorf("status = %s, want PENDING", p.Status)
	}

	f.clock.Advance(3 * time.Minute)

	p, err = f.svc.CheckStatus(ctx, res.Payment.ID)
	if err != nil {
		t.Fatalf("CheckStatus after timeout: %v", err)
	}
	if p.Status != payment.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", p.Status)
	}
}

func TestExpirePending_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	f.clock.Advance(3 * time.Minute)
	fresh, _ := f.svc.Initiate(ctx, "tenant-2", "starter", "0712345679")

	n, err := f.svc.ExpirePending(ctx)
	if err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	p, _ := f.ledger.Payments().Get(ctx, old.Payment.ID)
	if p.Status != payment.StatusExpired {
		t.Errorf("old status = %s, want EXPIRED", p.Status)
	}
	p, _ = f.ledger.Payments().Get(ctx, fresh.Payment.ID)
	if p.Status != payment.StatusPending {
		t.Errorf("fresh status = %s, want PENDING", p.Status)
	}
}

func TestCallbackAfterExpiry_Absorbed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.svc.Initiate(ctx, "tenant-1", "starter", "0712345678")
	f.clock.Advance(3 * time.Minute)
	if _, err := f.svc.ExpirePending(ctx); err != nil {
		t.Fatalf("ExpirePending: %v", err)
	}

	// The provider's success arrives after we gave up. Absorbed per policy:
	// the payment stays EXPIRED and no subscription is granted.
	ref := "ref-" + res.Payment.ID
	if _, err := f.svc.HandleCallback(ctx, callback(ref, "success", "RCPT1", "")); err != nil {
		t.Fatalf("late callback: %v", err)
	}

	p, _ := f.ledger.Payments().Get(ctx, res.Payment.ID)
	if p.Status != payment.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", p.Status)
	}
	subs, _ := f.ledger.Subscriptions().ListBySubscriber(ctx, "tenant-1")
	if len(subs) != 0 {
		t.Errorf("late callback must not grant, got %d subscriptions", len(subs))
	}
}
