package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"glowbook/internal/booking"
	"glowbook/internal/database"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// PaymentEventRequest is the request body for POST /api/v1/payments/events.
// The payment provider's webhook relay authenticates with the admin key.
type PaymentEventRequest struct {
	AppointmentCode string `json:"appointment_code"`
	ProviderRef     string `json:"provider_ref,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Outcome         string `json:"outcome"` // "succeeded" or "closed"
}

// handlePaymentEvent applies a payment outcome to a pending appointment.
// POST /api/v1/payments/events
func (s *HTTPServer) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("payment_event")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	if !s.requireAdminKey(w, r) {
		return
	}

	var req PaymentEventRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.AppointmentCode == "" {
		writeError(w, http.StatusBadRequest, "appointment_code is required")
		return
	}
	if req.Outcome != models.PaymentSucceeded && req.Outcome != models.PaymentClosed {
		writeError(w, http.StatusBadRequest, "outcome must be \"succeeded\" or \"closed\"")
		return
	}
	if req.Outcome == models.PaymentSucceeded && req.ProviderRef == "" {
		writeError(w, http.StatusBadRequest, "provider_ref is required for succeeded events")
		return
	}

	appt, err := s.booking.HandlePaymentEvent(r.Context(), booking.PaymentEvent{
		AppointmentCode: req.AppointmentCode,
		ProviderRef:     req.ProviderRef,
		AmountCents:     req.AmountCents,
		Currency:        strings.ToLower(req.Currency),
		Outcome:         req.Outcome,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, booking.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "appointment is not in a payable state")
		default:
			s.log.Error().Err(err).Str("code", req.AppointmentCode).Msg("payment event failed")
			writeError(w, http.StatusInternalServerError, "failed to apply payment event")
		}
		return
	}

	writeJSON(w, http.StatusOK, appointmentView(appt, s.venueOffset(r)))
}
