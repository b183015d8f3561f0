// Package api exposes the storefront booking HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"glowbook/internal/availability"
	"glowbook/internal/booking"
	"glowbook/internal/cart"
	"glowbook/internal/content"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// AvailabilityService evaluates slot availability for a selected date.
type AvailabilityService interface {
	Refresh(ctx context.Context, date schedule.Date) (*availability.DaySchedule, error)
}

// BookingService runs appointment creation and the payment state machine.
type BookingService interface {
	CreateAppointment(ctx context.Context, req booking.Request) (*models.Appointment, error)
	GetByCode(ctx context.Context, code string) (*models.Appointment, error)
	HandlePaymentEvent(ctx context.Context, ev booking.PaymentEvent) (*models.Appointment, error)
}

// ContentProvider serves published storefront content.
type ContentProvider interface {
	BookingSettings(ctx context.Context) (*schedule.Settings, error)
	Services(ctx context.Context) ([]content.Service, error)
	ServiceByID(ctx context.Context, id string) (*content.Service, error)
	ActivePromotions(ctx context.Context) ([]content.Promotion, error)
	AvailableStaff(ctx context.Context) ([]content.Staff, error)
	BookingPolicy(ctx context.Context) (*content.Policy, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	Port        int
	AdminAPIKey string
	// Per-client rate limit for appointment submissions.
	BookingRatePerSecond float64
	BookingBurst         int
}

// HTTPServer serves the public booking API.
type HTTPServer struct {
	availability AvailabilityService
	booking      BookingService
	content      ContentProvider
	store        AdminStore
	deps         []Pinger
	opts         Options
	carts        *cart.Store
	log          *zerolog.Logger
	srv          *http.Server

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPServer wires the handlers onto a mux and prepares the server.
func NewHTTPServer(av AvailabilityService, bk BookingService, ct ContentProvider, store AdminStore, deps []Pinger, opts Options, logger *zerolog.Logger) *HTTPServer {
	if opts.BookingRatePerSecond <= 0 {
		opts.BookingRatePerSecond = 2
	}
	if opts.BookingBurst <= 0 {
		opts.BookingBurst = 5
	}

	s := &HTTPServer{
		availability: av,
		booking:      bk,
		content:      ct,
		store:        store,
		deps:         deps,
		opts:         opts,
		carts:        cart.NewStore(30 * time.Minute),
		log:          logger,
		limiters:     make(map[string]*rate.Limiter),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/availability", s.handleAvailability)
	mux.HandleFunc("/api/v1/appointments", s.handleCreateAppointment)
	mux.HandleFunc("/api/v1/appointments/", s.handleGetAppointment)
	mux.HandleFunc("/api/v1/payments/events", s.handlePaymentEvent)
	mux.HandleFunc("/api/v1/services", s.handleServices)
	mux.HandleFunc("/api/v1/promotions", s.handlePromotions)
	mux.HandleFunc("/api/v1/staff", s.handleStaff)
	mux.HandleFunc("/api/v1/policy", s.handlePolicy)
	mux.HandleFunc("/api/v1/cart", s.handleCart)
	mux.HandleFunc("/api/v1/cart/items", s.handleCartItems)
	mux.HandleFunc("/api/v1/cart/items/", s.handleRemoveCartItem)
	mux.HandleFunc("/api/v1/cart/promo-seen", s.handlePromoSeen)
	mux.HandleFunc("/api/v1/admin/appointments", s.handleAdminAppointments)
	mux.HandleFunc("/api/v1/admin/payments", s.handleAdminPayments)
	mux.HandleFunc("/api/v1/admin/export", s.handleAdminExport)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Carts exposes the session store so the caller can run expiry cleanup.
func (s *HTTPServer) Carts() *cart.Store {
	return s.carts
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requireAdminKey guards internal endpoints with the shared API key.
func (s *HTTPServer) requireAdminKey(w http.ResponseWriter, r *http.Request) bool {
	if s.opts.AdminAPIKey == "" {
		writeError(w, http.StatusServiceUnavailable, "admin API key not configured")
		return false
	}
	if r.Header.Get("x-api-key") != s.opts.AdminAPIKey {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return false
	}
	return true
}

// limiterFor returns the per-client limiter, keyed by remote IP.
func (s *HTTPServer) limiterFor(r *http.Request) *rate.Limiter {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.opts.BookingRatePerSecond), s.opts.BookingBurst)
		s.limiters[host] = lim
	}
	return lim
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
