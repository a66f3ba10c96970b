package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wkarimi/kodisha/ports"
)

// InitiateRequest starts a payment for a plan.
type InitiateRequest struct {
	SubscriberID string `json:"subscriber_id"`
	PlanID       string `json:"plan_id"`
	PhoneNumber  string `json:"phone_number"`
}

// InitiateResponse returns the pending payment and the provider's message.
type InitiateResponse struct {
	Payment PaymentResponse `json:"payment"`
	Message string          `json:"message,omitempty"`
}

// InitiatePayment starts the purchase flow: the payment is recorded and the
// provider pushes a prompt to the subscriber's phone. The client polls
// GET /api/payments/{id} for the outcome.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubscriberID == "" || req.PlanID == "" || req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "subscriber_id, plan_id and phone_number are required")
		return
	}

	res, err := h.payments.Initiate(r.Context(), req.SubscriberID, req.PlanID, req.PhoneNumber)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, InitiateResponse{
		Payment: toPaymentResponse(res.Payment),
		Message: res.Message,
	})
}

// GetPayment returns the payment's current status for polling clients.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.CheckStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

// PaymentCallback receives the provider's asynchronous charge result.
// Deliveries are at-least-once; repeats for settled payments return 200 so
// the provider stops retrying.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	p, err := h.payments.HandleCallback(r.Context(), body)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// Unknown correlation id. Acknowledge so the provider does not
			// retry forever; the warn log is the trace.
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		h.logger.Error().Err(err).Msg("callback handling failed")
		writeError(w, http.StatusBadRequest, "bad_callback", "callback could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"payment_id": p.ID,
	})
}
