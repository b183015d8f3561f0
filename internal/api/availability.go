package api

import (
	"errors"
	"net/http"
	"time"

	"glowbook/internal/metrics"
	"glowbook/internal/schedule"
)

// SlotResponse is one candidate slot of a day.
type SlotResponse struct {
	Time   string `json:"time"`
	Status string `json:"status"`
}

// AvailabilityResponse is the response for GET /api/v1/availability.
type AvailabilityResponse struct {
	Date   string         `json:"date"`
	Loaded bool           `json:"loaded"`
	Slots  []SlotResponse `json:"slots"`
}

// handleAvailability evaluates the slot grid for one date.
// GET /api/v1/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := schedule.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	started := time.Now()
	day, err := s.availability.Refresh(r.Context(), date)
	metrics.ObserveAvailability(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidConfig) {
			s.log.Error().Err(err).Msg("published booking settings are invalid")
			writeError(w, http.StatusBadGateway, "booking settings unavailable")
			return
		}
		s.log.Error().Err(err).Str("date", dateStr).Msg("availability lookup failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}

	resp := AvailabilityResponse{
		Date:   date.String(),
		Loaded: day.Loaded,
		Slots:  make([]SlotResponse, 0, len(day.Slots)),
	}
	for _, sl := range day.Slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			Time:   sl.Slot.Label(),
			Status: string(sl.Status),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
