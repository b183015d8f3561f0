package models

import "time"

// Payment statuses reported by the payment widget callback.
const (
	PaymentSucceeded = "succeeded"
	PaymentClosed    = "closed"
)

// Payment records a deposit transaction attached to an appointment.
type Payment struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	ProviderRef   string    `json:"provider_ref"` // widget transaction id
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
