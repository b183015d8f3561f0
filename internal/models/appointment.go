package models

import "time"

// Appointment statuses. An appointment is created pending and moves to
// confirmed or abandoned through the payment flow; cancelled and completed
// are set by the salon staff afterwards.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusAbandoned = "abandoned"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment represents a booked salon visit.
type Appointment struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"` // public lookup handle (uuid)
	ClientName   string    `json:"client_name"`
	ClientEmail  string    `json:"client_email"`
	ClientPhone  string    `json:"client_phone"`
	ServiceID    string    `json:"service_id"`
	ServiceName  string    `json:"service_name"`
	StartTime    time.Time `json:"start_time"` // absolute UTC instant
	DurationMin  int       `json:"duration_min"`
	Status       string    `json:"status"`
	DepositCents int64     `json:"deposit_cents"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int64     `json:"version"`
}

// EndTime returns the end of the appointment. A zero duration means a
// single-slot visit and yields StartTime.
func (a *Appointment) EndTime() time.Time {
	if a.DurationMin <= 0 {
		return a.StartTime
	}
	return a.StartTime.Add(time.Duration(a.DurationMin) * time.Minute)
}

// IsActive reports whether the appointment still occupies its slot.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// OverlapsWith checks whether two appointments occupy intersecting time
// ranges, using half-open [start, end) semantics.
func (a *Appointment) OverlapsWith(other *Appointment) bool {
	thisEnd := a.EndTime()
	otherEnd := other.EndTime()
	if thisEnd.Equal(a.StartTime) {
		thisEnd = a.StartTime.Add(time.Minute)
	}
	if otherEnd.Equal(other.StartTime) {
		otherEnd = other.StartTime.Add(time.Minute)
	}
	return a.StartTime.Before(otherEnd) && other.StartTime.Before(thisEnd)
}
