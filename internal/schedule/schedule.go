// Package schedule computes bookable time slots for a single venue day.
//
// The computation is pure: given the venue's booking settings, the set of
// already-reserved slots for a date and the current instant, it produces
// every candidate slot of the day tagged with its availability status. It
// performs no I/O and keeps no state between calls.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig indicates malformed booking settings.
	ErrInvalidConfig = errors.New("invalid booking settings")
	// ErrInvalidDate indicates a value that does not name a real calendar date.
	ErrInvalidDate = errors.New("invalid date")
)

// Settings holds the venue's booking configuration as published by the
// content backend. All times are interpreted in the venue's fixed UTC offset,
// never the viewer's device timezone.
type Settings struct {
	StartHour           int     `json:"StartTimeHour"`
	EndHour             int     `json:"EndTimeHour"`
	SlotIntervalMinutes int     `json:"SlotIntervalMinutes"`
	BookingWindowHours  float64 `json:"BookingWindowHours"`
	TimezoneOffsetHours float64 `json:"TimezoneOffsetHours"`
}

// Validate checks the structural invariants of the settings.
func (s *Settings) Validate() error {
	if s.EndHour <= s.StartHour {
		return fmt.Errorf("%w: end hour %d must be after start hour %d", ErrInvalidConfig, s.EndHour, s.StartHour)
	}
	if s.SlotIntervalMinutes <= 0 {
		return fmt.Errorf("%w: slot interval %d minutes", ErrInvalidConfig, s.SlotIntervalMinutes)
	}
	return nil
}

// Window returns the minimum advance notice as a duration.
func (s *Settings) Window() time.Duration {
	if s.BookingWindowHours <= 0 {
		return 0
	}
	return time.Duration(s.BookingWindowHours * float64(time.Hour))
}

// Offset returns the venue's UTC offset as a duration.
func (s *Settings) Offset() time.Duration {
	return time.Duration(s.TimezoneOffsetHours * float64(time.Hour))
}

// SlotCount returns the number of candidate slots a valid configuration
// generates: ceil((EndHour-StartHour)*60 / SlotIntervalMinutes).
func (s *Settings) SlotCount() int {
	window := (s.EndHour - s.StartHour) * 60
	return (window + s.SlotIntervalMinutes - 1) / s.SlotIntervalMinutes
}

// Date is a calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of an instant in its own location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// valid reports whether the date names a real calendar day. time.Date
// normalizes overflow (Feb 30 becomes Mar 2), so a round trip that moves
// the components means the input was not a real date.
func (d Date) valid() bool {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Year() == d.Year && t.Month() == d.Month && t.Day() == d.Day
}

// Slot is a local clock time on the requested date.
type Slot struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Label formats the slot as a zero-padded "HH:MM" string.
func (s Slot) Label() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Status classifies a candidate slot. Exactly one status applies per slot.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusTooSoon   Status = "too_soon"
)

// SlotAvailability is a candidate slot annotated with its derived status.
type SlotAvailability struct {
	Slot   Slot
	Status Status
}

// SlotInstant converts a venue-local slot on a date into the absolute UTC
// instant it names, using the venue's fixed offset. This is the conversion
// callers use when persisting a selected appointment time.
func SlotInstant(d Date, s Slot, offsetHours float64) time.Time {
	offset := time.Duration(offsetHours * float64(time.Hour))
	return time.Date(d.Year, d.Month, d.Day, s.Hour, s.Minute, 0, 0, time.UTC).Add(-offset)
}

// VenueLocal shifts an absolute instant into the venue's local clock frame.
// The result carries UTC as its location; only the clock reading matters.
func VenueLocal(t time.Time, offsetHours float64) time.Time {
	offset := time.Duration(offsetHours * float64(time.Hour))
	return t.UTC().Add(offset)
}

// ComputeSlots produces the ordered candidate slots for date with their
// availability. A nil settings value yields an empty result: the caller has
// not loaded configuration yet and must show a loading state, not an error.
//
// Candidates run from StartHour:00 up to but never including EndHour:00.
// Booked-ness and the advance-notice window are independent criteria checked
// per slot, booked winning, so the caller can render disabled slots with a
// reason instead of hiding them. The result is ascending and never reordered.
func ComputeSlots(date Date, settings *Settings, booked []string, now time.Time) ([]SlotAvailability, error) {
	if settings == nil {
		return nil, nil
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if !date.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}

	bookedSet := make(map[string]struct{}, len(booked))
	for _, label := range booked {
		bookedSet[label] = struct{}{}
	}

	cutoff := now.Add(settings.Window())

	// Integer minutes-since-midnight keeps odd intervals (45 minutes over a
	// two-hour window) landing on exact hour/minute boundaries.
	start := settings.StartHour * 60
	end := settings.EndHour * 60

	slots := make([]SlotAvailability, 0, settings.SlotCount())
	for total := start; total < end; total += settings.SlotIntervalMinutes {
		slot := Slot{Hour: total / 60, Minute: total % 60}

		status := StatusAvailable
		if _, taken := bookedSet[slot.Label()]; taken {
			status = StatusBooked
		} else if SlotInstant(date, slot, settings.TimezoneOffsetHours).Before(cutoff) {
			status = StatusTooSoon
		}

		slots = append(slots, SlotAvailability{Slot: slot, Status: status})
	}

	return slots, nil
}
