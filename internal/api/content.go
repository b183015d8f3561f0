package api

import (
	"errors"
	"net/http"

	"glowbook/internal/content"
	"glowbook/internal/metrics"
)

// Read-only proxies over the published content. They exist so the
// storefront talks to one origin and never holds a backend API token.

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("services")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	services, err := s.content.Services(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("services fetch failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handlePromotions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("promotions")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	promos, err := s.content.ActivePromotions(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("promotions fetch failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promos})
}

func (s *HTTPServer) handleStaff(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("staff")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	staff, err := s.content.AvailableStaff(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("staff fetch failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (s *HTTPServer) handlePolicy(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("policy")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	policy, err := s.content.BookingPolicy(r.Context())
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeError(w, http.StatusNotFound, "policy not published")
			return
		}
		s.log.Error().Err(err).Msg("policy fetch failed")
		writeError(w, http.StatusBadGateway, "content backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
