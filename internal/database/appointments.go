package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"glowbook/internal/models"
)

const appointmentColumns = `id, code, client_name, client_email, client_phone,
	service_id, service_name, start_time, duration_min, status, deposit_cents,
	comment, created_at, updated_at, version`

// CreateAppointment inserts a new appointment and fills in its ID.
func (db *DB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := db.ExecContext(ctx,
		`INSERT INTO appointments (code, client_name, client_email, client_phone,
			service_id, service_name, start_time, duration_min, status,
			deposit_cents, comment, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		a.Code, a.ClientName, a.ClientEmail, a.ClientPhone,
		a.ServiceID, a.ServiceName, a.StartTime.UTC(), a.DurationMin, a.Status,
		a.DepositCents, a.Comment, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	a.ID, err = res.LastInsertId()
	return err
}

// GetAppointment returns an appointment by ID.
func (db *DB) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointment(row)
}

// GetAppointmentByCode returns an appointment by its public code.
func (db *DB) GetAppointmentByCode(ctx context.Context, code string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE code = ?`, code)
	return scanAppointment(row)
}

// UpdateAppointmentStatus moves an appointment to a new status using
// optimistic locking on the version column.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id, version int64, status string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE appointments
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		status, time.Now().UTC(), id, version,
	)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// GetAppointmentsByDateRange returns appointments starting within [start, end).
func (db *DB) GetAppointmentsByDateRange(ctx context.Context, start, end time.Time) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// GetOverlappingAppointment returns a pending or confirmed appointment whose
// time range intersects [start, start+durationMin), or ErrNotFound. The SQL
// only narrows by start_time; the overlap itself is decided in Go because the
// end of an appointment is derived from its duration column.
func (db *DB) GetOverlappingAppointment(ctx context.Context, start time.Time, durationMin int) (*models.Appointment, error) {
	probe := &models.Appointment{StartTime: start.UTC(), DurationMin: durationMin}

	// No service runs longer than a day, so nothing starting earlier than a
	// day before the probe can still reach into it.
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time > ? AND start_time < ?
		ORDER BY start_time`,
		start.UTC().Add(-24*time.Hour), probe.EndTime().Add(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("query overlapping: %w", err)
	}
	defer rows.Close()

	candidates, err := collectAppointments(rows)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].IsActive() && candidates[i].OverlapsWith(probe) {
			return &candidates[i], nil
		}
	}
	return nil, ErrNotFound
}

// ListAppointments returns all appointments, newest first.
func (db *DB) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ExpirePendingAppointments abandons pending appointments created before the
// cutoff (the payment widget was never completed). Returns only the IDs it
// actually transitioned: an appointment confirmed between the select and the
// update keeps its status and is not reported.
func (db *DB) ExpirePendingAppointments(ctx context.Context, cutoff time.Time) ([]int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("expire pending: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM appointments WHERE status = ? AND created_at < ?`,
		models.StatusPending, cutoff.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var expired []int64
	for _, id := range candidates {
		res, err := tx.ExecContext(ctx,
			`UPDATE appointments SET status = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND status = ?`,
			models.StatusAbandoned, time.Now().UTC(), id, models.StatusPending,
		)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected > 0 {
			expired = append(expired, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("expire pending: %w", err)
	}
	return expired, nil
}

func scanAppointment(row *sql.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID, &a.Code, &a.ClientName, &a.ClientEmail, &a.ClientPhone,
		&a.ServiceID, &a.ServiceName, &a.StartTime, &a.DurationMin, &a.Status,
		&a.DepositCents, &a.Comment, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var list []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(
			&a.ID, &a.Code, &a.ClientName, &a.ClientEmail, &a.ClientPhone,
			&a.ServiceID, &a.ServiceName, &a.StartTime, &a.DurationMin, &a.Status,
			&a.DepositCents, &a.Comment, &a.CreatedAt, &a.UpdatedAt, &a.Version,
		); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
