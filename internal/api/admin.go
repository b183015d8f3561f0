package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"glowbook/internal/database"
	"glowbook/internal/export"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// AdminStore is the persistence surface behind the back-office endpoints.
type AdminStore interface {
	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	ListPaymentsForAppointment(ctx context.Context, appointmentID int64) ([]models.Payment, error)
	GetPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
}

// handleAdminAppointments lists all appointments for the back office.
// GET /api/v1/admin/appointments
func (s *HTTPServer) handleAdminAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_appointments")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireAdminKey(w, r) {
		return
	}

	appointments, err := s.store.ListAppointments(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("appointment list failed")
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

// handleAdminPayments looks up a payment by the widget transaction id, or
// lists payments of one appointment.
// GET /api/v1/admin/payments?ref=tx-123
// GET /api/v1/admin/payments?appointment_id=42
func (s *HTTPServer) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_payments")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireAdminKey(w, r) {
		return
	}

	if ref := r.URL.Query().Get("ref"); ref != "" {
		payment, err := s.store.GetPaymentByProviderRef(r.Context(), ref)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "payment not found")
				return
			}
			s.log.Error().Err(err).Str("ref", ref).Msg("payment lookup failed")
			writeError(w, http.StatusInternalServerError, "failed to load payment")
			return
		}
		writeJSON(w, http.StatusOK, payment)
		return
	}

	appointmentID, err := strconv.ParseInt(r.URL.Query().Get("appointment_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ref or appointment_id is required")
		return
	}
	payments, err := s.store.ListPaymentsForAppointment(r.Context(), appointmentID)
	if err != nil {
		s.log.Error().Err(err).Int64("appointment_id", appointmentID).Msg("payment list failed")
		writeError(w, http.StatusInternalServerError, "failed to list payments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// handleAdminExport streams the full appointment ledger as a workbook.
// GET /api/v1/admin/export
func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireAdminKey(w, r) {
		return
	}

	appointments, err := s.store.ListAppointments(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("appointment list failed")
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	sheetName := "Appointments " + time.Now().UTC().Format("2006-01-02")
	ledger, err := export.NewExcelLedger(sheetName, s.venueOffset(r))
	if err != nil {
		s.log.Error().Err(err).Msg("ledger create failed")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}
	defer ledger.Close()

	for i := range appointments {
		if err := ledger.AddAppointment(&appointments[i]); err != nil {
			s.log.Error().Err(err).Msg("ledger row failed")
			writeError(w, http.StatusInternalServerError, "failed to build export")
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.xlsx"`)
	if err := ledger.Write(w); err != nil {
		s.log.Error().Err(err).Msg("ledger write failed")
	}
}
