package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// PaymentStore is the payment view over a Ledger.
type PaymentStore struct {
	l *Ledger
}

// Create stores a new payment in PENDING.
func (s *PaymentStore) Create(ctx context.Context, p payment.Payment) error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	if _, ok := s.l.payments[p.ID]; ok {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	s.l.payments[p.ID] = p
	if p.ProviderRef != "" {
		s.l.byProviderRef[p.ProviderRef] = p.ID
	}
	return nil
}

// Get retrieves a payment by ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	p, ok := s.l.payments[id]
	if !ok {
		return payment.Payment{}, ports.ErrNotFound
	}
	return p, nil
}

// GetByProviderRef retrieves a payment by its provider correlation id.
func (s *PaymentStore) GetByProviderRef(ctx context.Context, ref string) (payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	id, ok := s.l.byProviderRef[ref]
	if !ok {
		return payment.Payment{}, ports.ErrNotFound
	}
	return s.l.payments[id], nil
}

// SetProviderRef records the provider correlation id after initiation.
func (s *PaymentStore) SetProviderRef(ctx context.Context, id, ref string) error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	p, ok := s.l.payments[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.ProviderRef = ref
	s.l.payments[id] = p
	s.l.byProviderRef[ref] = id
	return nil
}

// Transition moves a payment to a terminal status with CAS semantics.
func (s *PaymentStore) Transition(ctx context.Context, id string, to payment.Status, failReason string, at time.Time) (payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	p, ok := s.l.payments[id]
	if !ok {
		return payment.Payment{}, ports.ErrNotFound
	}
	if err := payment.CanTransition(p.Status, to); err != nil {
		return p, err
	}
	p.Status = to
	p.FailReason = failReason
	t := at
	p.TerminalAt = &t
	s.l.payments[id] = p
	return p, nil
}

// Settle records the SUCCESS transition and the granted subscription
// atomically under the ledger lock.
func (s *PaymentStore) Settle(ctx context.Context, id, receipt string, sub subscription.Subscription, at time.Time) (payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	p, ok := s.l.payments[id]
	if !ok {
		return payment.Payment{}, ports.ErrNotFound
	}
	if err := payment.CanTransition(p.Status, payment.StatusSuccess); err != nil {
		return p, err
	}
	if _, dup := s.l.byPaymentID[id]; dup {
		return p, subscription.ErrDuplicateGrant
	}

	p.Status = payment.StatusSuccess
	p.Receipt = receipt
	t := at
	p.TerminalAt = &t
	s.l.payments[id] = p

	s.l.subs[sub.ID] = sub
	s.l.byPaymentID[id] = sub.ID
	return p, nil
}

// ListPendingBefore returns PENDING payments created before the cutoff.
func (s *PaymentStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	var out []payment.Payment
	for _, p := range s.l.payments {
		if p.Status == payment.StatusPending && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// List returns payments for export, newest first.
func (s *PaymentStore) List(ctx context.Context, f ports.ExportFilter) ([]payment.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	var out []payment.Payment
	for _, p := range s.l.payments {
		if !f.From.IsZero() && p.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !p.CreatedAt.Before(f.To) {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
