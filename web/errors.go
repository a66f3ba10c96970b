package web

import (
	"errors"
	"net/http"

	"github.com/wkarimi/kodisha/app"
	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/domain/payment"
	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/domain/subscription"
	"github.com/wkarimi/kodisha/ports"
)

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unmapped is a 500 with the detail kept out of the response body.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, plan.ErrUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "plan_unavailable", "plan is not purchasable")
	case errors.Is(err, ports.ErrInvalidPhone):
		writeError(w, http.StatusUnprocessableEntity, "invalid_phone", "phone number is not valid for the provider")
	case errors.Is(err, app.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "provider_unavailable", "payment provider rejected the request, try again")
	case errors.Is(err, app.ErrNoQuotaAvailable):
		writeError(w, http.StatusConflict, "no_quota", "no active subscription has remaining quota")
	case errors.Is(err, subscription.ErrQuotaExhausted):
		writeError(w, http.StatusConflict, "quota_exhausted", "subscription quota is exhausted")
	case errors.Is(err, subscription.ErrInactive):
		writeError(w, http.StatusConflict, "subscription_inactive", "subscription is expired or revoked")
	case errors.Is(err, payment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "already_terminal", "payment is already in a terminal state")
	case errors.Is(err, audit.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", "a reason is required for admin mutations")
	default:
		h.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
