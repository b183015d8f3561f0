package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(start, end, interval int) *Settings {
	return &Settings{
		StartHour:           start,
		EndHour:             end,
		SlotIntervalMinutes: interval,
	}
}

func TestComputeSlots_CandidateGeneration(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // far in the past

	tests := []struct {
		name     string
		settings *Settings
		labels   []string
	}{
		{
			name:     "even division",
			settings: settings(9, 11, 30),
			labels:   []string{"09:00", "09:30", "10:00", "10:30"},
		},
		{
			name:     "uneven interval stops before close",
			settings: settings(9, 11, 45),
			labels:   []string{"09:00", "09:45", "10:30"},
		},
		{
			name:     "hourly",
			settings: settings(9, 17, 60),
			labels:   []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"},
		},
		{
			name:     "interval larger than window",
			settings: settings(9, 10, 90),
			labels:   []string{"09:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := ComputeSlots(date, tt.settings, nil, now)
			require.NoError(t, err)
			require.Len(t, slots, len(tt.labels))
			assert.Equal(t, tt.settings.SlotCount(), len(slots))

			for i, s := range slots {
				assert.Equal(t, tt.labels[i], s.Slot.Label())
				assert.Equal(t, StatusAvailable, s.Status)
			}

			// The last candidate starts strictly before the closing hour.
			last := slots[len(slots)-1].Slot
			assert.Less(t, last.Hour*60+last.Minute, tt.settings.EndHour*60)
		})
	}
}

func TestComputeSlots_SortedNoDuplicates(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	slots, err := ComputeSlots(date, settings(8, 20, 25), nil, now)
	require.NoError(t, err)

	seen := make(map[string]bool)
	prev := -1
	for _, s := range slots {
		total := s.Slot.Hour*60 + s.Slot.Minute
		assert.Greater(t, total, prev, "slots must be strictly ascending")
		assert.False(t, seen[s.Slot.Label()], "duplicate slot %s", s.Slot.Label())
		seen[s.Slot.Label()] = true
		prev = total
	}
}

func TestComputeSlots_BookedOverridesTooSoon(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	cfg := settings(9, 11, 60)
	cfg.BookingWindowHours = 48 // every slot is inside the window
	cfg.TimezoneOffsetHours = 1

	now := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	slots, err := ComputeSlots(date, cfg, []string{"09:00"}, now)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, StatusBooked, slots[0].Status, "booked wins over too-soon")
	assert.Equal(t, StatusTooSoon, slots[1].Status)
}

func TestComputeSlots_BookingWindow(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	cfg := settings(9, 11, 60)
	cfg.BookingWindowHours = 2
	cfg.TimezoneOffsetHours = 1

	// Venue-local 09:30: cutoff is local 11:30, past every slot.
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	slots, err := ComputeSlots(date, cfg, nil, now)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, StatusTooSoon, slots[0].Status)
	assert.Equal(t, StatusTooSoon, slots[1].Status)

	// Venue-local 07:00: cutoff is local 09:00, so both slots are open. The
	// 09:00 slot sits exactly on the cutoff boundary and stays bookable.
	now = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	slots, err = ComputeSlots(date, cfg, nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, slots[0].Status)
	assert.Equal(t, StatusAvailable, slots[1].Status)
}

func TestComputeSlots_ZeroWindow(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	cfg := settings(9, 11, 60)
	cfg.TimezoneOffsetHours = 1

	// Now is well before opening; with no advance-notice window only the
	// booked slot is excluded.
	now := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	slots, err := ComputeSlots(date, cfg, []string{"09:00"}, now)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, StatusBooked, slots[0].Status)
	assert.Equal(t, StatusAvailable, slots[1].Status)
}

func TestComputeSlots_NilSettings(t *testing.T) {
	slots, err := ComputeSlots(Date{Year: 2024, Month: time.June, Day: 1}, nil, nil, time.Now())
	assert.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlots_InvalidConfig(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	now := time.Now()

	_, err := ComputeSlots(date, settings(17, 9, 30), nil, now)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ComputeSlots(date, settings(9, 9, 30), nil, now)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ComputeSlots(date, settings(9, 17, 0), nil, now)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ComputeSlots(date, settings(9, 17, -15), nil, now)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestComputeSlots_InvalidDate(t *testing.T) {
	_, err := ComputeSlots(Date{Year: 2024, Month: time.February, Day: 30}, settings(9, 17, 30), nil, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestComputeSlots_Idempotent(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	cfg := settings(9, 17, 30)
	cfg.BookingWindowHours = 4
	cfg.TimezoneOffsetHours = 1
	booked := []string{"10:00", "14:30"}
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	first, err := ComputeSlots(date, cfg, booked, now)
	require.NoError(t, err)
	second, err := ComputeSlots(date, cfg, booked, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSlotInstant_RoundTrip(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	slot := Slot{Hour: 9, Minute: 0}

	instant := SlotInstant(date, slot, 1)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), instant)

	local := VenueLocal(instant, 1)
	assert.Equal(t, "09:00", local.Format("15:04"))
	assert.Equal(t, date, DateOf(local))
}

func TestSlotInstant_NegativeOffset(t *testing.T) {
	date := Date{Year: 2024, Month: time.June, Day: 1}
	instant := SlotInstant(date, Slot{Hour: 9, Minute: 30}, -5)
	assert.Equal(t, time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC), instant)
	assert.Equal(t, "09:30", VenueLocal(instant, -5).Format("15:04"))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.June, Day: 1}, d)
	assert.Equal(t, "2024-06-01", d.String())

	_, err = ParseDate("2024-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("01.06.2024")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSettings_SlotCount(t *testing.T) {
	assert.Equal(t, 4, settings(9, 11, 30).SlotCount())
	assert.Equal(t, 3, settings(9, 11, 45).SlotCount()) // ceil(120/45)
	assert.Equal(t, 16, settings(9, 17, 30).SlotCount())
	assert.Equal(t, 1, settings(9, 10, 90).SlotCount())
}

func TestSlotLabel_ZeroPadding(t *testing.T) {
	assert.Equal(t, "08:05", Slot{Hour: 8, Minute: 5}.Label())
	assert.Equal(t, "00:00", Slot{}.Label())
	assert.Equal(t, "23:45", Slot{Hour: 23, Minute: 45}.Label())
}
