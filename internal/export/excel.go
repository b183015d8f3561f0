// Package export renders the appointment ledger for the salon's back
// office, as an Excel workbook and as a synced Google Sheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

var ledgerColumns = []string{
	"Code", "Client", "Email", "Phone", "Service", "Date", "Time",
	"Duration (min)", "Status", "Deposit", "Comment", "Created",
}

// ExcelLedger builds an appointment ledger workbook.
type ExcelLedger struct {
	file        *excelize.File
	sheet       string
	row         int
	offsetHours float64
}

// NewExcelLedger creates a ledger with a single sheet named after the
// export period. Times are rendered in venue-local time.
func NewExcelLedger(sheetName string, venueOffsetHours float64) (*ExcelLedger, error) {
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	l := &ExcelLedger{file: f, sheet: sheetName, row: 1, offsetHours: venueOffsetHours}
	if err := l.writeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *ExcelLedger) writeHeader() error {
	for i, col := range ledgerColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, l.row)
		if err != nil {
			return err
		}
		if err := l.file.SetCellValue(l.sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := l.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, l.row)
		endCell, _ := excelize.CoordinatesToCellName(len(ledgerColumns), l.row)
		_ = l.file.SetCellStyle(l.sheet, startCell, endCell, style)
	}

	l.row++
	return nil
}

// AddAppointment appends one ledger row.
func (l *ExcelLedger) AddAppointment(a *models.Appointment) error {
	for i, val := range appointmentRowValues(a, l.offsetHours) {
		cell, err := excelize.CoordinatesToCellName(i+1, l.row)
		if err != nil {
			return err
		}
		if err := l.file.SetCellValue(l.sheet, cell, val); err != nil {
			return err
		}
	}
	l.row++
	return nil
}

// Write streams the workbook.
func (l *ExcelLedger) Write(w io.Writer) error {
	return l.file.Write(w)
}

// SaveToFile writes the workbook to disk.
func (l *ExcelLedger) SaveToFile(path string) error {
	return l.file.SaveAs(path)
}

// Close releases the underlying file resources.
func (l *ExcelLedger) Close() error {
	return l.file.Close()
}

func appointmentRowValues(a *models.Appointment, offsetHours float64) []interface{} {
	local := schedule.VenueLocal(a.StartTime, offsetHours)
	return []interface{}{
		a.Code,
		a.ClientName,
		a.ClientEmail,
		a.ClientPhone,
		a.ServiceName,
		local.Format("2006-01-02"),
		local.Format("15:04"),
		a.DurationMin,
		a.Status,
		fmt.Sprintf("%d.%02d", a.DepositCents/100, a.DepositCents%100),
		a.Comment,
		a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
