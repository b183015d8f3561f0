package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"glowbook/internal/models"
)

// ErrDuplicatePayment indicates the provider reference was already recorded.
var ErrDuplicatePayment = errors.New("duplicate payment reference")

// CreatePayment records a deposit transaction. Inserting the same provider
// reference twice returns ErrDuplicatePayment so duplicate widget callbacks
// can be detected.
func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	p.CreatedAt = time.Now().UTC()

	res, err := db.ExecContext(ctx,
		`INSERT INTO payments (appointment_id, provider_ref, amount_cents, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.AppointmentID, p.ProviderRef, p.AmountCents, p.Currency, p.Status, p.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("create payment: %w", err)
	}

	p.ID, err = res.LastInsertId()
	return err
}

// GetPaymentByProviderRef looks up a payment by the widget transaction id.
func (db *DB) GetPaymentByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	err := db.QueryRowContext(ctx,
		`SELECT id, appointment_id, provider_ref, amount_cents, currency, status, created_at
		FROM payments WHERE provider_ref = ?`, ref,
	).Scan(&p.ID, &p.AppointmentID, &p.ProviderRef, &p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaymentsForAppointment returns payments attached to an appointment.
func (db *DB) ListPaymentsForAppointment(ctx context.Context, appointmentID int64) ([]models.Payment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, appointment_id, provider_ref, amount_cents, currency, status, created_at
		FROM payments WHERE appointment_id = ? ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.ProviderRef, &p.AmountCents, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
