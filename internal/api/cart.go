package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"glowbook/internal/cart"
	"glowbook/internal/content"
	"glowbook/internal/metrics"
)

const cartCookie = "cart_session"

// AddCartItemRequest is the request body for POST /api/v1/cart/items.
type AddCartItemRequest struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity,omitempty"`
}

// CartResponse is the visitor's current cart.
type CartResponse struct {
	Items      []cart.Item `json:"items"`
	TotalCents int64       `json:"total_cents"`
}

// cartSession resolves the visitor's session from the cookie, creating
// one when missing.
func (s *HTTPServer) cartSession(w http.ResponseWriter, r *http.Request) *cart.Session {
	var id string
	if c, err := r.Cookie(cartCookie); err == nil {
		id = c.Value
	}
	sess := s.carts.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookie,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int((30 * time.Minute).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// handleCart returns the current cart.
// GET /api/v1/cart
func (s *HTTPServer) handleCart(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sess := s.cartSession(w, r)
	writeJSON(w, http.StatusOK, CartResponse{Items: sess.Items(), TotalCents: sess.TotalCents()})
}

// handleCartItems adds a service to the cart.
// POST /api/v1/cart/items
func (s *HTTPServer) handleCartItems(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_items")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AddCartItemRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
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

	sess := s.cartSession(w, r)
	sess.AddItem(cart.Item{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		PriceCents:  svc.PriceCents,
		Quantity:    req.Quantity,
	})
	writeJSON(w, http.StatusOK, CartResponse{Items: sess.Items(), TotalCents: sess.TotalCents()})
}

// handleRemoveCartItem removes a service line from the cart.
// DELETE /api/v1/cart/items/{service_id}
func (s *HTTPServer) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_remove_item")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use DELETE")
		return
	}

	serviceID := strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/")
	if serviceID == "" || strings.Contains(serviceID, "/") {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}

	sess := s.cartSession(w, r)
	sess.RemoveItem(serviceID)
	writeJSON(w, http.StatusOK, CartResponse{Items: sess.Items(), TotalCents: sess.TotalCents()})
}

// handlePromoSeen records that the promo popup was shown. The first call
// of a session wins; the storefront only shows the popup when told to.
// POST /api/v1/cart/promo-seen
func (s *HTTPServer) handlePromoSeen(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cart_promo_seen")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	sess := s.cartSession(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"first_view": sess.MarkPromoShown()})
}
