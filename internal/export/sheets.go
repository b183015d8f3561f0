package export

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"glowbook/internal/models"
)

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// AppointmentSource lists appointments for the sync period.
type AppointmentSource interface {
	GetAppointmentsByDateRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
}

// SheetsService mirrors the appointment ledger into a Google Sheet the
// managers already live in.
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
	source        AppointmentSource
	offsetHours   float64
	logger        *zerolog.Logger

	mu       sync.RWMutex
	rowCache map[int64]int // appointment ID -> sheet row
}

// NewSheetsService authenticates with a service-account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, source AppointmentSource, venueOffsetHours float64, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsService{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		source:        source,
		offsetHours:   venueOffsetHours,
		logger:        logger,
		rowCache:      make(map[int64]int),
	}, nil
}

// Sync rewrites the ledger sheet with all non-cancelled appointments of
// the last 90 days and everything upcoming.
func (s *SheetsService) Sync(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -90)
	to := now.AddDate(1, 0, 0)

	appointments, err := s.source.GetAppointmentsByDateRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	active := s.filterActiveAppointments(appointments)

	values := make([][]interface{}, 0, len(active)+1)
	header := make([]interface{}, len(ledgerColumns))
	for i, col := range ledgerColumns {
		header[i] = col
	}
	values = append(values, header)

	s.mu.Lock()
	s.rowCache = make(map[int64]int, len(active))
	for i := range active {
		values = append(values, appointmentRowValues(&active[i], s.offsetHours))
		s.rowCache[active[i].ID] = i + 2 // 1-based, after the header
	}
	s.mu.Unlock()

	clear := &sheets.ClearValuesRequest{}
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, "A:L", clear).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	body := &sheets.ValueRange{Values: values}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, "A1", body).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	s.logger.Info().Int("rows", len(active)).Msg("ledger synced to google sheets")
	return nil
}

// RunSync re-syncs on the given interval until the context is done.
func (s *SheetsService) RunSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sheets sync failed")
			}
		}
	}
}

// filterActiveAppointments drops cancelled entries; the ledger tracks
// commitments, not history of changes of mind.
func (s *SheetsService) filterActiveAppointments(appointments []models.Appointment) []models.Appointment {
	active := make([]models.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.Status == models.StatusCancelled {
			continue
		}
		active = append(active, a)
	}
	return active
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

// ClearCache drops the row cache, forcing positions to be rebuilt on the
// next sync.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[int64]int)
}
