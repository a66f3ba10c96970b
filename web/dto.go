package web

import (
	"time"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/domain/quota"
	"github.com/wkarimi/kodisha/domain/subscription"
)

// PlanResponse is the wire form of a plan.
type PlanResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	DurationDays  int    `json:"duration_days"`
	TotalListings int64  `json:"total_listings"`
	TotalFeatured int64  `json:"total_featured"`
	IsActive      bool   `json:"is_active"`
}

func toPlanResponse(p plan.Plan) PlanResponse {
	return PlanResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		DurationDays:  p.DurationDays,
		TotalListings: p.TotalListings,
		TotalFeatured: p.TotalFeatured,
		IsActive:      p.IsActive,
	}
}

// PaymentResponse is the wire form of a payment.
type PaymentResponse struct {
	ID           string     `json:"id"`
	SubscriberID string     `json:"subscriber_id"`
	PlanID       string     `json:"plan_id"`
	Amount       int64      `json:"amount"`
	PhoneNumber  string     `json:"phone_number"`
	Status       string     `json:"status"`
	Receipt      string     `json:"receipt,omitempty"`
	FailReason   string     `json:"fail_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	TerminalAt   *time.Time `json:"terminal_at,omitempty"`
}

func toPaymentResponse(p payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		SubscriberID: p.SubscriberID,
		PlanID:       p.PlanID,
		Amount:       p.Amount,
		PhoneNumber:  p.PhoneNumber,
		Status:       string(p.Status),
		Receipt:      p.Receipt,
		FailReason:   p.FailReason,
		CreatedAt:    p.CreatedAt,
		TerminalAt:   p.TerminalAt,
	}
}

// SubscriptionResponse is the wire form of a subscription.
type SubscriptionResponse struct {
	ID                string     `json:"id"`
	SubscriberID      string     `json:"subscriber_id"`
	PlanID            string     `json:"plan_id"`
	SourcePaymentID   string     `json:"source_payment_id,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	RemainingListings int64      `json:"remaining_listings"`
	RemainingFeatured int64      `json:"remaining_featured"`
	TotalListings     int64      `json:"total_listings"`
	TotalFeatured     int64      `json:"total_featured"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

func toSubscriptionResponse(s subscription.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                s.ID,
		SubscriberID:      s.SubscriberID,
		PlanID:            s.PlanID,
		SourcePaymentID:   s.SourcePaymentID,
		StartedAt:         s.StartedAt,
		ExpiresAt:         s.ExpiresAt,
		RemainingListings: s.RemainingListings,
		RemainingFeatured: s.RemainingFeatured,
		TotalListings:     s.TotalListings,
		TotalFeatured:     s.TotalFeatured,
		RevokedAt:         s.RevokedAt,
	}
}

// QuotaResponse is the wire form of a quota snapshot.
type QuotaResponse struct {
	SubscriberID      string     `json:"subscriber_id"`
	ActiveCount       int        `json:"active_count"`
	RemainingListings int64      `json:"remaining_listings"`
	RemainingFeatured int64      `json:"remaining_featured"`
	TotalListings     int64      `json:"total_listings"`
	TotalFeatured     int64      `json:"total_featured"`
	ExpiresAtSoonest  *time.Time `json:"expires_at_soonest,omitempty"`
}

func toQuotaResponse(s quota.Snapshot) QuotaResponse {
	return QuotaResponse{
		SubscriberID:      s.SubscriberID,
		ActiveCount:       s.ActiveCount,
		RemainingListings: s.RemainingListings,
		RemainingFeatured: s.RemainingFeatured,
		TotalListings:     s.TotalListings,
		TotalFeatured:     s.TotalFeatured,
		ExpiresAtSoonest:  s.ExpiresAtSoonest,
	}
}

// AuditResponse is the wire form of an audit entry.
type AuditResponse struct {
	ID             string    `json:"id"`
	Action         string    `json:"action"`
	ActorID        string    `json:"actor_id"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	PaymentID      string    `json:"payment_id,omitempty"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAuditResponse(e audit.Entry) AuditResponse {
	return AuditResponse{
		ID:             e.ID,
		Action:         string(e.Action),
		ActorID:        e.ActorID,
		SubscriptionID: e.SubscriptionID,
		PaymentID:      e.PaymentID,
		Reason:         e.Reason,
		CreatedAt:      e.CreatedAt,
	}
}
