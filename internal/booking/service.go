// Package booking implements the appointment workflow: slot validation,
// pending-appointment creation and the two-phase payment confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"glowbook/internal/availability"
	"glowbook/internal/database"
	"glowbook/internal/events"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

var (
	// ErrSlotTaken is returned when the requested slot was booked between
	// render and submit.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrSlotTooSoon is returned when the slot violates the advance-notice
	// window.
	ErrSlotTooSoon = errors.New("slot violates booking window")
	// ErrUnknownSlot is returned when the "HH:MM" value names no candidate
	// of the requested day.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrNotBookable is returned while settings are not published yet.
	ErrNotBookable = errors.New("booking is not configured")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the persistence surface the workflow needs.
type Store interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	GetAppointmentByCode(ctx context.Context, code string) (*models.Appointment, error)
	GetOverlappingAppointment(ctx context.Context, start time.Time, durationMin int) (*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, version int64, status string) error
	CreatePayment(ctx context.Context, p *models.Payment) error
	ExpirePendingAppointments(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// SettingsProvider yields current booking settings for slot validation.
type SettingsProvider interface {
	BookingSettings(ctx context.Context) (*schedule.Settings, error)
}

// Policy is the mutable booking policy, hot-reloaded from config.
type Policy struct {
	DepositCents int64
	Currency     string
	PendingTTL   time.Duration
}

// Request is a storefront booking submission.
type Request struct {
	ClientName  string
	ClientEmail string
	ClientPhone string
	ServiceID   string
	ServiceName string
	DurationMin int
	Date        schedule.Date
	Slot        string // "HH:MM", venue-local
	Comment     string
}

// Service runs the booking workflow.
type Service struct {
	store    Store
	days     *availability.Service
	settings SettingsProvider
	bus      *events.EventBus
	logger   *zerolog.Logger

	policyMu sync.RWMutex
	policy   Policy

	// Now is the clock used for expiry sweeps; tests override it.
	Now func() time.Time
}

// NewService creates the booking workflow service.
func NewService(store Store, days *availability.Service, settings SettingsProvider, bus *events.EventBus, policy Policy, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		days:     days,
		settings: settings,
		bus:      bus,
		logger:   logger,
		policy:   policy,
		Now:      time.Now,
	}
}

// SetPolicy swaps the booking policy. Called from the config watcher
// goroutine while requests and the expiry sweep read the policy.
func (s *Service) SetPolicy(p Policy) {
	s.policyMu.Lock()
	s.policy = p
	s.policyMu.Unlock()
}

func (s *Service) currentPolicy() Policy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.policy
}

// CreateAppointment validates the requested slot against the evaluated day
// and persists a pending appointment holding it until the deposit is paid.
func (s *Service) CreateAppointment(ctx context.Context, req Request) (*models.Appointment, error) {
	settings, err := s.settings.BookingSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrNotBookable
	}

	day, err := s.days.SlotsForDate(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	status, ok := day.SlotStatus(req.Slot)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownSlot, req.Slot, req.Date)
	}
	switch status {
	case schedule.StatusBooked:
		return nil, ErrSlotTaken
	case schedule.StatusTooSoon:
		return nil, ErrSlotTooSoon
	}

	slot, err := parseSlotLabel(req.Slot)
	if err != nil {
		return nil, err
	}
	start := schedule.SlotInstant(req.Date, slot, settings.TimezoneOffsetHours)

	// The content backend's booked set can lag a just-created local
	// appointment; the local store is the second line of defense. The check
	// is duration-aware: a 60-minute visit at 09:00 also blocks 09:30.
	if _, err := s.store.GetOverlappingAppointment(ctx, start, req.DurationMin); err == nil {
		return nil, ErrSlotTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	appt := &models.Appointment{
		Code:         uuid.NewString(),
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  req.ClientPhone,
		ServiceID:    req.ServiceID,
		ServiceName:  req.ServiceName,
		StartTime:    start,
		DurationMin:  req.DurationMin,
		Status:       models.StatusPending,
		DepositCents: s.currentPolicy().DepositCents,
		Comment:      req.Comment,
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	metrics.IncAppointmentCreated(appt.Status)
	s.bus.Publish(events.Event{Type: events.AppointmentCreated, Appointment: appt})
	s.logger.Info().
		Str("code", appt.Code).
		Str("slot", req.Slot).
		Str("date", req.Date.String()).
		Msg("appointment created")

	return appt, nil
}

// GetByCode returns an appointment by its public code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Appointment, error) {
	return s.store.GetAppointmentByCode(ctx, code)
}

// RunExpirySweep periodically abandons pending appointments whose payment
// was never completed, releasing their slots.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireOnce(ctx)
		}
	}
}

func (s *Service) expireOnce(ctx context.Context) {
	cutoff := s.Now().Add(-s.currentPolicy().PendingTTL)
	ids, err := s.store.ExpirePendingAppointments(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	for _, id := range ids {
		appt, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			continue
		}
		metrics.IncPaymentTransition("expired")
		s.bus.Publish(events.Event{Type: events.AppointmentAbandoned, Appointment: appt})
	}
	if len(ids) > 0 {
		s.logger.Info().Int("count", len(ids)).Msg("expired pending appointments")
	}
}

func parseSlotLabel(label string) (schedule.Slot, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(label, "%02d:%02d", &hour, &minute); err != nil {
		return schedule.Slot{}, fmt.Errorf("%w: %q", ErrUnknownSlot, label)
	}
	return schedule.Slot{Hour: hour, Minute: minute}, nil
}
