// Package app contains the engine's use-case services. Services hold no
// mutable state of their own; all cross-request invariants live in the
// stores' atomic primitives.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/adapters/metrics"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// PaymentConfig tunes the payment service.
type PaymentConfig struct {
	// PendingTimeout is how long a PENDING payment may wait for the provider
	// before the sweep expires it.
	PendingTimeout time.Duration

	// PushTimeout bounds one provider round-trip.
	PushTimeout time.Duration
}

func (c *PaymentConfig) defaults() {
	if c.PendingTimeout <= 0 {
		c.PendingTimeout = 2 * time.Minute
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 10 * time.Second
	}
}

// PaymentService owns the payment lifecycle: initiation, pull-based status,
// the provider callback, and the timeout sweep. The callback and the sweep
// both funnel through the store's compare-and-set transition, so duplicate
// and stale deliveries cannot move a terminal payment.
type PaymentService struct {
	plans    ports.PlanStore
	payments ports.PaymentStore
	provider ports.PaymentProvider
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  *metrics.Collector
	logger   zerolog.Logger
	cfg      PaymentConfig
}

// NewPaymentService creates a payment service. metrics may be nil.
func NewPaymentService(
	plans ports.PlanStore,
	payments ports.PaymentStore,
	provider ports.PaymentProvider,
	clock ports.Clock,
	idGen ports.IDGenerator,
	m *metrics.Collector,
	logger zerolog.Logger,
	cfg PaymentConfig,
) *PaymentService {
	cfg.defaults()
	return &PaymentService{
		plans:    plans,
		payments: payments,
		provider: provider,
		clock:    clock,
		idGen:    idGen,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// InitiateResult is what the subscriber needs to start polling.
type InitiateResult struct {
	Payment payment.Payment
	Message string
}

// Initiate validates the purchase, records the payment in PENDING, then asks
// the provider to push the prompt. The PENDING row exists before the provider
// is contacted so a provider-side failure still leaves an auditable record; a
// definitive provider rejection marks it FAILED synchronously, while a
// timeout leaves it PENDING for the poll/sweep to resolve.
func (s *PaymentService) Initiate(ctx context.Context, subscriberID, planID, phoneNumber string) (InitiateResult, error) {
	p, err := s.plans.Get(ctx, planID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.countInitiated("rejected")
			return InitiateResult{}, fmt.Errorf("plan %s: %w", planID, plan.ErrUnavailable)
		}
		return InitiateResult{}, err
	}
	if err := plan.Purchasable(p); err != nil {
		s.countInitiated("rejected")
		return InitiateResult{}, fmt.Errorf("plan %s: %w", planID, err)
	}
	if err := s.provider.ValidatePhone(phoneNumber); err != nil {
		s.countInitiated("rejected")
		return InitiateResult{}, err
	}

	now := s.clock.Now()
	pay := payment.Payment{
		ID:           s.idGen.New(),
		SubscriberID: subscriberID,
		PlanID:       p.ID,
		Amount:       p.Price,
		PhoneNumber:  phoneNumber,
		Status:       payment.StatusPending,
		CreatedAt:    now,
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		return InitiateResult{}, fmt.Errorf("create payment: %w", err)
	}

	ack, err := s.push(ctx, ports.ChargeRequest{
		PaymentID:   pay.ID,
		PhoneNumber: phoneNumber,
		Amount:      p.Price,
		Description: p.Name,
	})
	if err != nil {
		if isTimeout(err) {
			// Provider may still deliver the prompt; leave PENDING and let
			// polling or the sweep settle it.
			s.countInitiated("pending")
			s.logger.Warn().Err(err).Str("payment_id", pay.ID).Msg("provider push timed out, payment left pending")
			return InitiateResult{Payment: pay, Message: "payment pending, poll for status"}, nil
		}

		s.countInitiated("failed")
		if s.metrics != nil {
			s.metrics.ProviderPushErrors.Inc()
		}
		s.logger.Error().Err(err).Str("payment_id", pay.ID).Msg("provider push failed, marking payment failed")
		if _, trErr := s.payments.Transition(ctx, pay.ID, payment.StatusFailed, err.Error(), s.clock.Now()); trErr != nil {
			s.logger.Error().Err(trErr).Str("payment_id", pay.ID).Msg("failed to mark payment failed")
		}
		return InitiateResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if ack.ProviderRef != "" {
		if err := s.payments.SetProviderRef(ctx, pay.ID, ack.ProviderRef); err != nil {
			s.logger.Error().Err(err).Str("payment_id", pay.ID).Msg("failed to record provider ref")
		}
		pay.ProviderRef = ack.ProviderRef
	}

	s.countInitiated("pending")
	s.logger.Info().
		Str("payment_id", pay.ID).
		Str("subscriber_id", subscriberID).
		Str("plan_id", p.ID).
		Int64("amount", p.Price).
		Msg("payment initiated")
	return InitiateResult{Payment: pay, Message: ack.Message}, nil
}

// push calls the provider with a bounded timeout and one transparent retry
// on transport errors. Timeouts are not retried: the prompt may have landed.
func (s *PaymentService) push(ctx context.Context, req ports.ChargeRequest) (ports.ChargeAck, error) {
	attempt := func() (ports.ChargeAck, error) {
		pushCtx, cancel := context.WithTimeout(ctx, s.cfg.PushTimeout)
		defer cancel()

		start := time.Now()
		ack, err := s.provider.Push(pushCtx, req)
		if s.metrics != nil {
			s.metrics.ProviderPushSecs.Observe(time.Since(start).Seconds())
		}
		return ack, err
	}

	ack, err := attempt()
	if err == nil || isTimeout(err) {
		return ack, err
	}
	return attempt()
}

// CheckStatus returns the payment for a polling client. A payment whose
// pending window has lapsed is expired lazily here, so the polling loop
// terminates even between sweeps.
func (s *PaymentService) CheckStatus(ctx context.Context, paymentID string) (payment.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return payment.Payment{}, err
	}

	now := s.clock.Now()
	if payment.StalePending(p, now, s.cfg.PendingTimeout) {
		expired, err := s.payments.Transition(ctx, paymentID, payment.StatusExpired, "pending timeout", now)
		if err != nil && !errors.Is(err, payment.ErrInvalidTransition) {
			return payment.Payment{}, err
		}
		s.countSettled(payment.StatusExpired)
		return expired, nil
	}
	return p, nil
}

// HandleCallback processes one provider callback delivery. Deliveries are
// at-least-once: a repeat for an already-terminal payment is absorbed and the
// recorded payment returned. A DuplicateGrant from the settle transaction is
// surfaced, not absorbed; it means the unique source-payment constraint saved
// us from double-granting and someone should look.
func (s *PaymentService) HandleCallback(ctx context.Context, payload []byte) (payment.Payment, error) {
	res, err := s.provider.ParseCallback(payload)
	if err != nil {
		return payment.Payment{}, err
	}

	pay, err := s.payments.GetByProviderRef(ctx, res.ProviderRef)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn().Str("provider_ref", res.ProviderRef).Msg("callback for unknown payment")
		}
		return payment.Payment{}, err
	}

	now := s.clock.Now()
	switch res.Outcome {
	case ports.OutcomeSuccess:
		return s.settle(ctx, pay, res.Receipt, now)
	case ports.OutcomeFailed:
		p, err := s.payments.Transition(ctx, pay.ID, payment.StatusFailed, res.FailReason, now)
		if errors.Is(err, payment.ErrInvalidTransition) {
			s.absorbDuplicate(pay.ID)
			return p, nil
		}
		if err != nil {
			return payment.Payment{}, err
		}
		s.countSettled(payment.StatusFailed)
		s.logger.Info().Str("payment_id", pay.ID).Str("reason", res.FailReason).Msg("payment failed")
		return p, nil
	default:
		return payment.Payment{}, fmt.Errorf("unknown callback outcome %q", res.Outcome)
	}
}

// settle pairs the SUCCESS transition with the subscription grant in one
// store transaction.
func (s *PaymentService) settle(ctx context.Context, pay payment.Payment, receipt string, now time.Time) (payment.Payment, error) {
	p, err := s.plans.Get(ctx, pay.PlanID)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("plan %s for payment %s: %w", pay.PlanID, pay.ID, err)
	}

	sub := subscription.FromPayment(s.idGen.New(), pay.SubscriberID, pay.ID, p, now)
	settled, err := s.payments.Settle(ctx, pay.ID, receipt, sub, now)
	if errors.Is(err, payment.ErrInvalidTransition) {
		s.absorbDuplicate(pay.ID)
		return settled, nil
	}
	if errors.Is(err, subscription.ErrDuplicateGrant) {
		s.logger.Error().
			Str("payment_id", pay.ID).
			Msg("integrity: subscription already exists for payment without terminal status")
		return payment.Payment{}, err
	}
	if err != nil {
		return payment.Payment{}, err
	}

	s.countSettled(payment.StatusSuccess)
	s.logger.Info().
		Str("payment_id", pay.ID).
		Str("subscription_id", sub.ID).
		Str("receipt", receipt).
		Msg("payment settled, subscription granted")
	return settled, nil
}

// ExpirePending transitions stale PENDING payments to EXPIRED and returns how
// many it expired. Races with a late callback are resolved by the store's
// compare-and-set: whoever commits first wins and the loser is a no-op.
func (s *PaymentService) ExpirePending(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.payments.ListPendingBefore(ctx, now.Add(-s.cfg.PendingTimeout))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		_, err := s.payments.Transition(ctx, p.ID, payment.StatusExpired, "pending timeout", now)
		if errors.Is(err, payment.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
		s.countSettled(payment.StatusExpired)
	}

	if expired > 0 {
		if s.metrics != nil {
			s.metrics.SweepExpired.Add(float64(expired))
		}
		s.logger.Info().Int("count", expired).Msg("expired stale pending payments")
	}
	return expired, nil
}

// RunSweeper expires stale PENDING payments on a fixed interval until the
// context is cancelled.
func (s *PaymentService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("payment sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.ExpirePending(ctx); err != nil {
				if s.metrics != nil {
					s.metrics.SweepErrors.Inc()
				}
				s.logger.Error().Err(err).Msg("payment sweep failed")
			}
		}
	}
}

func (s *PaymentService) absorbDuplicate(paymentID string) {
	if s.metrics != nil {
		s.metrics.CallbacksAbsorbed.Inc()
	}
	s.logger.Debug().Str("payment_id", paymentID).Msg("duplicate terminal callback absorbed")
}

func (s *PaymentService) countInitiated(outcome string) {
	if s.metrics != nil {
		s.metrics.PaymentsInitiated.WithLabelValues(outcome).Inc()
	}
}

func (s *PaymentService) countSettled(status payment.Status) {
	if s.metrics != nil {
		s.metrics.PaymentsSettled.WithLabelValues(string(status)).Inc()
	}
}

// isTimeout classifies provider transport errors that should leave the
// payment PENDING rather than FAILED.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
