package booking

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"glowbook/internal/availability"
	"glowbook/internal/database"
	"glowbook/internal/events"
	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	args := m.Called(ctx, a)
	if args.Error(0) == nil {
		a.ID = 1
	}
	return args.Error(0)
}

func (m *mockStore) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *mockStore) GetAppointmentByCode(ctx context.Context, code string) (*models.Appointment, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *mockStore) GetOverlappingAppointment(ctx context.Context, start time.Time, durationMin int) (*models.Appointment, error) {
	args := m.Called(ctx, start, durationMin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

func (m *mockStore) UpdateAppointmentStatus(ctx context.Context, id, version int64, status string) error {
	return m.Called(ctx, id, version, status).Error(0)
}

func (m *mockStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockStore) ExpirePendingAppointments(ctx context.Context, cutoff time.Time) ([]int64, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type stubSettings struct {
	settings *schedule.Settings
}

func (s *stubSettings) BookingSettings(ctx context.Context) (*schedule.Settings, error) {
	return s.settings, nil
}

type stubBooked struct {
	slots []string
}

func (s *stubBooked) BookedSlots(ctx context.Context, date schedule.Date) ([]string, error) {
	return s.slots, nil
}

func testSettings() *schedule.Settings {
	return &schedule.Settings{
		StartHour:           9,
		EndHour:             11,
		SlotIntervalMinutes: 60,
		BookingWindowHours:  2,
		TimezoneOffsetHours: 1,
	}
}

func newTestService(store Store, settings *schedule.Settings, booked []string) (*Service, *events.EventBus) {
	logger := zerolog.New(io.Discard)
	provider := &stubSettings{settings: settings}
	days := availability.NewService(provider, &stubBooked{slots: booked}, &logger)
	days.Now = func() time.Time { return time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC) }

	bus := events.NewEventBus()
	policy := Policy{DepositCents: 1000, Currency: "eur", PendingTTL: 30 * time.Minute}
	svc := NewService(store, days, provider, bus, policy, &logger)
	svc.Now = days.Now
	return svc, bus
}

func testRequest() Request {
	return Request{
		ClientName:  "Ada",
		ClientEmail: "ada@example.com",
		ServiceID:   "svc-1",
		ServiceName: "Manicure",
		DurationMin: 45,
		Date:        schedule.Date{Year: 2024, Month: time.June, Day: 1},
		Slot:        "10:00",
	}
}

func TestCreateAppointment(t *testing.T) {
	store := new(mockStore)
	svc, bus := newTestService(store, testSettings(), nil)
	ctx := context.Background()

	var published []events.Event
	bus.Subscribe(events.AppointmentCreated, func(e events.Event) error {
		published = append(published, e)
		return nil
	})

	// 10:00 venue-local, offset +1 -> 09:00 UTC.
	wantStart := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store.On("GetOverlappingAppointment", ctx, wantStart, 45).Return(nil, database.ErrNotFound).Once()
	store.On("CreateAppointment", ctx, mock.AnythingOfType("*models.Appointment")).Return(nil).Once()

	appt, err := svc.CreateAppointment(ctx, testRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, appt.Code)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, wantStart, appt.StartTime)
	assert.Equal(t, int64(1000), appt.DepositCents)
	require.Len(t, published, 1)
	assert.Equal(t, appt, published[0].Appointment)
	store.AssertExpectations(t)
}

func TestCreateAppointment_SlotBooked(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, testSettings(), []string{"10:00"})

	_, err := svc.CreateAppointment(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrSlotTaken)
	store.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestCreateAppointment_TooSoon(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, testSettings(), nil)
	// Venue-local 09:30 + 2h window puts both slots inside the cutoff.
	svc.days.Now = func() time.Time { return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC) }

	_, err := svc.CreateAppointment(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrSlotTooSoon)
}

func TestCreateAppointment_UnknownSlot(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, testSettings(), nil)

	req := testRequest()
	req.Slot = "12:00"
	_, err := svc.CreateAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestCreateAppointment_NoSettings(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, nil, nil)

	_, err := svc.CreateAppointment(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNotBookable)
}

func TestCreateAppointment_LocalRaceLost(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, testSettings(), nil)
	ctx := context.Background()

	wantStart := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	holder := &models.Appointment{ID: 7, Status: models.StatusPending, StartTime: wantStart}
	store.On("GetOverlappingAppointment", ctx, wantStart, 45).Return(holder, nil).Once()

	_, err := svc.CreateAppointment(ctx, testRequest())
	assert.ErrorIs(t, err, ErrSlotTaken)
	store.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestExpireOnce(t *testing.T) {
	store := new(mockStore)
	svc, bus := newTestService(store, testSettings(), nil)
	ctx := context.Background()

	var abandoned []events.Event
	bus.Subscribe(events.AppointmentAbandoned, func(e events.Event) error {
		abandoned = append(abandoned, e)
		return nil
	})

	expired := &models.Appointment{ID: 3, Code: "x", Status: models.StatusAbandoned}
	store.On("ExpirePendingAppointments", ctx, mock.AnythingOfType("time.Time")).Return([]int64{3}, nil).Once()
	store.On("GetAppointment", ctx, int64(3)).Return(expired, nil).Once()

	svc.expireOnce(ctx)

	require.Len(t, abandoned, 1)
	assert.Equal(t, expired, abandoned[0].Appointment)
	store.AssertExpectations(t)
}

// Policy reloads happen on the config-watcher goroutine while bookings
// and expiry sweeps read the policy; the test fails under -race if the
// accesses are not synchronized.
func TestSetPolicy_ConcurrentWithReads(t *testing.T) {
	store := new(mockStore)
	svc, _ := newTestService(store, testSettings(), nil)
	ctx := context.Background()

	store.On("GetOverlappingAppointment", ctx, mock.AnythingOfType("time.Time"), 45).Return(nil, database.ErrNotFound)
	store.On("CreateAppointment", ctx, mock.AnythingOfType("*models.Appointment")).Return(nil)
	store.On("ExpirePendingAppointments", ctx, mock.AnythingOfType("time.Time")).Return([]int64{}, nil)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			svc.SetPolicy(Policy{DepositCents: int64(i), Currency: "eur", PendingTTL: time.Duration(i) * time.Minute})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = svc.CreateAppointment(ctx, testRequest())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			svc.expireOnce(ctx)
		}
	}()
	wg.Wait()
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		allowed  bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusAbandoned, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusCompleted, true},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusConfirmed, true}, // idempotent repeat
		{models.StatusAbandoned, models.StatusConfirmed, false},
		{models.StatusCancelled, models.StatusConfirmed, false},
		{models.StatusCompleted, models.StatusPending, false},
		{models.StatusConfirmed, models.StatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
