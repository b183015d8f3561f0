package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// DigestSource lists appointments for the digest day.
type DigestSource interface {
	GetAppointmentsByDateRange(ctx context.Context, start, end time.Time) ([]models.Appointment, error)
}

// DigestConfig holds the daily digest schedule, in venue-local time.
type DigestConfig struct {
	Hour          int
	Minute        int
	CheckInterval time.Duration
}

// DefaultDigestConfig sends the digest at 08:00 venue time.
func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		Hour:          8,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// DailyDigest sends the managers a morning summary of the day's
// confirmed appointments.
type DailyDigest struct {
	notifier *TelegramNotifier
	source   DigestSource
	config   DigestConfig

	lastSent schedule.Date
	now      func() time.Time
}

// NewDailyDigest wires the digest onto an existing notifier.
func NewDailyDigest(notifier *TelegramNotifier, source DigestSource, config DigestConfig) *DailyDigest {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &DailyDigest{
		notifier: notifier,
		source:   source,
		config:   config,
		now:      time.Now,
	}
}

// Run checks on the configured interval and sends at most one digest a
// day, at or after the scheduled venue-local time.
func (d *DailyDigest) Run(ctx context.Context) {
	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.maybeSend(ctx); err != nil {
				d.notifier.logger.Error().Err(err).Msg("daily digest failed")
			}
		}
	}
}

func (d *DailyDigest) maybeSend(ctx context.Context) error {
	local := schedule.VenueLocal(d.now().UTC(), d.notifier.offset)
	today := schedule.DateOf(local)

	if d.lastSent == today {
		return nil
	}
	if local.Hour() < d.config.Hour ||
		(local.Hour() == d.config.Hour && local.Minute() < d.config.Minute) {
		return nil
	}

	// Day bounds as absolute instants.
	dayStart := schedule.SlotInstant(today, schedule.Slot{}, d.notifier.offset)
	dayEnd := dayStart.Add(24 * time.Hour)

	appointments, err := d.source.GetAppointmentsByDateRange(ctx, dayStart, dayEnd)
	if err != nil {
		return err
	}

	if err := d.notifier.broadcast(d.buildDigest(today, appointments)); err != nil {
		return err
	}
	d.lastSent = today
	return nil
}

func (d *DailyDigest) buildDigest(day schedule.Date, appointments []models.Appointment) string {
	var confirmed []models.Appointment
	for _, a := range appointments {
		if a.Status == models.StatusConfirmed {
			confirmed = append(confirmed, a)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Schedule for %s*\n", day)
	if len(confirmed) == 0 {
		b.WriteString("\nNo confirmed appointments today.")
		return b.String()
	}
	for _, a := range confirmed {
		local := schedule.VenueLocal(a.StartTime, d.notifier.offset)
		fmt.Fprintf(&b, "\n%s — %s, %s", local.Format("15:04"), a.ClientName, a.ServiceName)
	}
	return b.String()
}
