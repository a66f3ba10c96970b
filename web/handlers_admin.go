package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
)

// GrantRequest creates a subscription without a payment.
type GrantRequest struct {
	SubscriberID string `json:"subscriber_id"`
	PlanID       string `json:"plan_id"`
	Reason       string `json:"reason"`
}

// AdminGrant grants a plan's quotas to a subscriber manually.
func (h *Handler) AdminGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubscriberID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "subscriber_id and plan_id are required")
		return
	}

	sub, err := h.admin.Grant(r.Context(), req.SubscriberID, req.PlanID, actorID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// ExtendRequest pushes a subscription's expiry forward.
type ExtendRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// AdminExtend extends a subscription's validity by days.
func (h *Handler) AdminExtend(w http.ResponseWriter, r *http.Request) {
	var req ExtendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Days <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "days must be positive")
		return
	}

	sub, err := h.admin.Extend(r.Context(), chi.URLParam(r, "id"), req.Days, actorID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ReasonRequest carries only the mandatory audit reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// AdminResetUsage restores a subscription's counters to its frozen totals.
func (h *Handler) AdminResetUsage(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.admin.ResetUsage(r.Context(), chi.URLParam(r, "id"), actorID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// AdminRevoke deactivates a subscription immediately.
func (h *Handler) AdminRevoke(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.admin.Revoke(r.Context(), chi.URLParam(r, "id"), actorID(r), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

// CreatePlanRequest defines a new catalog entry.
type CreatePlanRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	DurationDays  int    `json:"duration_days"`
	TotalListings int64  `json:"total_listings"`
	TotalFeatured int64  `json:"total_featured"`
}

// AdminCreatePlan adds a plan to the catalog.
func (h *Handler) AdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.plans.Create(r.Context(), plan.Plan{
		ID:            req.ID,
		Name:          req.Name,
		Price:         req.Price,
		DurationDays:  req.DurationDays,
		TotalListings: req.TotalListings,
		TotalFeatured: req.TotalFeatured,
		IsActive:      true,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(p))
}

// AdminDeactivatePlan hides a plan from new purchases.
func (h *Handler) AdminDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminAudit returns audit entries, newest first. Filters: actor_id, action,
// from, to (RFC 3339), limit.
func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	f := ports.AuditFilter{
		ActorID: r.URL.Query().Get("actor_id"),
		Action:  audit.Action(r.URL.Query().Get("action")),
		Limit:   parseIntQuery(r, "limit", 100),
	}
	f.From, f.To = parseTimeRange(r)

	entries, err := h.admin.AuditTrail(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]AuditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}

// ExportPayments streams payment rows for reconciliation. Filters: status,
// from, to (RFC 3339), limit.
func (h *Handler) ExportPayments(w http.ResponseWriter, r *http.Request) {
	f := exportFilter(r)
	rows, err := h.export.Payments(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]PaymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": out})
}

// ExportSubscriptions streams subscription rows for reconciliation.
func (h *Handler) ExportSubscriptions(w http.ResponseWriter, r *http.Request) {
	f := exportFilter(r)
	rows, err := h.export.Subscriptions(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]SubscriptionResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, toSubscriptionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": out})
}

func exportFilter(r *http.Request) ports.ExportFilter {
	f := ports.ExportFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  parseIntQuery(r, "limit", 0),
	}
	f.From, f.To = parseTimeRange(r)
	return f
}

func parseTimeRange(r *http.Request) (from, to time.Time) {
	if s := r.URL.Query().Get("from"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			from = t
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			to = t
		}
	}
	return from, to
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
