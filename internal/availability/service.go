// Package availability wires the settings and booked-slots providers to the
// slot evaluator and tracks the currently selected day for refreshes.
package availability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"glowbook/internal/schedule"
)

// SettingsProvider supplies the venue's booking settings, or (nil, nil) when
// they are not published yet.
type SettingsProvider interface {
	BookingSettings(ctx context.Context) (*schedule.Settings, error)
}

// BookedSlotsProvider supplies the complete reserved-slot set for a date.
type BookedSlotsProvider interface {
	BookedSlots(ctx context.Context, date schedule.Date) ([]string, error)
}

// DaySchedule is the evaluated slot list for one date. Loaded distinguishes
// "settings not published yet" from "zero available slots": the storefront
// renders the former as a loading state, the latter as a fully booked day.
type DaySchedule struct {
	Date   schedule.Date
	Slots  []schedule.SlotAvailability
	Loaded bool
}

// Service computes day schedules from the two providers.
type Service struct {
	settings SettingsProvider
	booked   BookedSlotsProvider
	logger   *zerolog.Logger

	// Now is the clock used for the advance-notice cutoff; tests override it.
	Now func() time.Time

	mu       sync.Mutex
	gen      uint64
	selected schedule.Date
	current  *DaySchedule
}

// NewService creates an availability service.
func NewService(settings SettingsProvider, booked BookedSlotsProvider, logger *zerolog.Logger) *Service {
	return &Service{
		settings: settings,
		booked:   booked,
		logger:   logger,
		Now:      time.Now,
	}
}

// SlotsForDate evaluates availability for a date. Each call fetches fresh
// booked slots; settings come from the provider (typically cached for the
// session). Absent settings degrade to an unloaded, empty schedule.
func (s *Service) SlotsForDate(ctx context.Context, date schedule.Date) (*DaySchedule, error) {
	settings, err := s.settings.BookingSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &DaySchedule{Date: date}, nil
	}

	booked, err := s.booked.BookedSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	slots, err := schedule.ComputeSlots(date, settings, booked, s.Now())
	if err != nil {
		return nil, err
	}
	return &DaySchedule{Date: date, Slots: slots, Loaded: true}, nil
}

// Refresh recomputes the schedule for date and makes it the current
// selection. Selecting a new date supersedes any in-flight refresh for a
// previous one: a result is applied only if the selection has not moved on
// by the time its fetch completes, otherwise it is discarded.
func (s *Service) Refresh(ctx context.Context, date schedule.Date) (*DaySchedule, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.selected = date
	s.mu.Unlock()

	day, err := s.SlotsForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.selected != date {
		if s.logger != nil {
			s.logger.Debug().Str("date", date.String()).Msg("discarding stale availability result")
		}
		return day, nil
	}
	s.current = day
	return day, nil
}

// Current returns the last applied schedule, or nil before the first
// successful refresh.
func (s *Service) Current() *DaySchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SlotStatus finds the status of a specific "HH:MM" candidate in a day
// schedule. The second return is false when the label names no candidate.
func (d *DaySchedule) SlotStatus(label string) (schedule.Status, bool) {
	for _, s := range d.Slots {
		if s.Slot.Label() == label {
			return s.Status, true
		}
	}
	return "", false
}
