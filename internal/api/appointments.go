package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"glowbook/internal/booking"
	"glowbook/internal/content"
	"glowbook/internal/database"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// CreateAppointmentRequest is the request body for POST /api/v1/appointments.
type CreateAppointmentRequest struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone,omitempty"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"` // Format: YYYY-MM-DD
	Time        string `json:"time"` // Format: HH:MM, venue-local
	Comment     string `json:"comment,omitempty"`
}

// AppointmentResponse is the public view of an appointment.
type AppointmentResponse struct {
	Code         string `json:"code"`
	Status       string `json:"status"`
	ClientName   string `json:"client_name"`
	ServiceName  string `json:"service_name"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	DepositCents int64  `json:"deposit_cents"`
	Currency     string `json:"currency,omitempty"`
}

func appointmentView(a *models.Appointment, offsetHours float64) AppointmentResponse {
	local := schedule.VenueLocal(a.StartTime, offsetHours)
	return AppointmentResponse{
		Code:         a.Code,
		Status:       a.Status,
		ClientName:   a.ClientName,
		ServiceName:  a.ServiceName,
		Date:         local.Format("2006-01-02"),
		Time:         local.Format("15:04"),
		DepositCents: a.DepositCents,
	}
}

// handleCreateAppointment books a slot with a pending deposit.
// POST /api/v1/appointments
func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_appointment")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	if !s.limiterFor(r).Allow() {
		writeError(w, http.StatusTooManyRequests, "too many booking attempts; slow down")
		return
	}

	var req CreateAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ClientName == "" || req.ClientEmail == "" {
		writeError(w, http.StatusBadRequest, "client_name and client_email are required")
		return
	}
	if req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}

	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	svc, err := s.content.ServiceByID(r.Context(), req.ServiceID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "unknown service")
			return
		}
		s.log.Error().Err(err).Str("service_id", req.ServiceID).Msg("service lookup failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}

	appt, err := s.booking.CreateAppointment(r.Context(), booking.Request{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		DurationMin: svc.DurationMin,
		Date:        date,
		Slot:        req.Time,
		Comment:     req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotTaken):
			writeError(w, http.StatusConflict, "slot is already booked")
		case errors.Is(err, booking.ErrSlotTooSoon):
			writeError(w, http.StatusUnprocessableEntity, "slot is within the advance-notice window")
		case errors.Is(err, booking.ErrUnknownSlot):
			writeError(w, http.StatusUnprocessableEntity, "time does not match any bookable slot")
		case errors.Is(err, booking.ErrNotBookable):
			writeError(w, http.StatusServiceUnavailable, "booking is not available yet")
		default:
			s.log.Error().Err(err).Str("date", req.Date).Str("time", req.Time).Msg("appointment creation failed")
			writeError(w, http.StatusInternalServerError, "failed to create appointment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, appointmentView(appt, s.venueOffset(r)))
}

// handleGetAppointment returns the appointment behind a confirmation code.
// GET /api/v1/appointments/{code}
func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_appointment")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	code := strings.TrimPrefix(r.URL.Path, "/api/v1/appointments/")
	if code == "" || strings.Contains(code, "/") {
		writeError(w, http.StatusBadRequest, "appointment code is required")
		return
	}

	appt, err := s.booking.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		s.log.Error().Err(err).Str("code", code).Msg("appointment lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	writeJSON(w, http.StatusOK, appointmentView(appt, s.venueOffset(r)))
}

// venueOffset resolves the venue UTC offset used for rendering local
// times. Falls back to UTC while settings are not published.
func (s *HTTPServer) venueOffset(r *http.Request) float64 {
	settings, err := s.content.BookingSettings(r.Context())
	if err != nil || settings == nil {
		return 0
	}
	return settings.TimezoneOffsetHours
}
