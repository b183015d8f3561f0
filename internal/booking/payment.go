package booking

import (
	"context"
	"errors"
	"fmt"

	"glowbook/internal/database"
	"glowbook/internal/events"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// PaymentEvent is a payment-widget callback: the provider reports the
// outcome of the deposit transaction for an appointment.
type PaymentEvent struct {
	AppointmentCode string
	ProviderRef     string
	AmountCents     int64
	Currency        string
	Outcome         string // models.PaymentSucceeded or models.PaymentClosed
}

// HandlePaymentEvent drives the two-phase confirmation:
// pending -> confirmed on success, pending -> abandoned on widget close.
// Handling is idempotent: a duplicate success event for an appointment that
// is already confirmed is a no-op, it never double-books or errors.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev PaymentEvent) (*models.Appointment, error) {
	appt, err := s.store.GetAppointmentByCode(ctx, ev.AppointmentCode)
	if err != nil {
		return nil, err
	}

	var target string
	switch ev.Outcome {
	case models.PaymentSucceeded:
		target = models.StatusConfirmed
	case models.PaymentClosed:
		target = models.StatusAbandoned
	default:
		return nil, fmt.Errorf("unknown payment outcome %q", ev.Outcome)
	}

	// Replayed event: the transition already happened, report success
	// without touching anything.
	if appt.Status == target {
		metrics.IncPaymentTransition("duplicate")
		s.logger.Debug().Str("code", appt.Code).Str("outcome", ev.Outcome).Msg("duplicate payment event ignored")
		return appt, nil
	}

	if !CanTransition(appt.Status, target) {
		metrics.IncPaymentTransition("rejected")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, target)
	}

	if ev.Outcome == models.PaymentSucceeded {
		payment := &models.Payment{
			AppointmentID: appt.ID,
			ProviderRef:   ev.ProviderRef,
			AmountCents:   ev.AmountCents,
			Currency:      ev.Currency,
			Status:        models.PaymentSucceeded,
		}
		if err := s.store.CreatePayment(ctx, payment); err != nil {
			// Replayed ref: the payment row exists from an earlier
			// delivery. The appointment is still pending here (a
			// completed delivery is caught by the same-status check
			// above), so that earlier delivery must have failed between
			// recording the payment and confirming. Fall through to the
			// status update instead of reporting success.
			if !errors.Is(err, database.ErrDuplicatePayment) {
				return nil, err
			}
			metrics.IncPaymentTransition("duplicate")
			s.logger.Debug().Str("code", appt.Code).Str("ref", ev.ProviderRef).Msg("replayed payment ref, completing transition")
		}
	}

	if err := s.store.UpdateAppointmentStatus(ctx, appt.ID, appt.Version, target); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Re-read: if the race winner applied the same transition the
			// event is satisfied.
			current, readErr := s.store.GetAppointment(ctx, appt.ID)
			if readErr == nil && current.Status == target {
				metrics.IncPaymentTransition("duplicate")
				return current, nil
			}
		}
		return nil, err
	}

	appt.Status = target
	appt.Version++

	metrics.IncPaymentTransition(target)
	eventType := events.AppointmentConfirmed
	if target == models.StatusAbandoned {
		eventType = events.AppointmentAbandoned
	}
	s.bus.Publish(events.Event{Type: eventType, Appointment: appt})
	s.logger.Info().Str("code", appt.Code).Str("status", target).Msg("payment event applied")

	return appt, nil
}
