package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wkarimi/kodisha/domain/subscription"
)

// GetQuota returns the subscriber's aggregate quota snapshot. A subscriber
// with no subscriptions gets a zero snapshot, not a 404.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	snap, err := h.quota.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotaResponse(snap))
}

// ConsumeRequest spends one unit of a quota field.
type ConsumeRequest struct {
	Field string `json:"field"`
}

// ConsumeResponse names the subscription that was charged.
type ConsumeResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
}

// Consume spends one quota unit for the subscriber. 409 with code "no_quota"
// means nothing can be published until a plan is bought or quota restored.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	field := subscription.QuotaField(req.Field)
	if !field.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", `field must be "listings" or "featured"`)
		return
	}

	sub, err := h.consume.Consume(r.Context(), chi.URLParam(r, "id"), field)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsumeResponse{Subscription: toSubscriptionResponse(sub)})
}
