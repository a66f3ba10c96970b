package web

import "net/http"

// ListPlans returns the purchasable catalog, cheapest first.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": out})
}
