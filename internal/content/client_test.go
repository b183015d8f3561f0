package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glowbook/internal/schedule"
)

func TestBookingSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/booking-setting", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"StartTimeHour":9,"EndTimeHour":17,"SlotIntervalMinutes":30,"BookingWindowHours":2,"TimezoneOffsetHours":1}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	settings, err := client.BookingSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, 9, settings.StartHour)
	assert.Equal(t, 17, settings.EndHour)
	assert.Equal(t, 30, settings.SlotIntervalMinutes)
	assert.Equal(t, 2.0, settings.BookingWindowHours)
	assert.Equal(t, 1.0, settings.TimezoneOffsetHours)
}

func TestBookingSettings_NotPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	settings, err := client.BookingSettings(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, settings)
}

func TestBookedSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/booked-slots", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("date"))
		w.Write([]byte(`{"data":["10:00","14:30"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	slots, err := client.BookedSlots(context.Background(), schedule.Date{Year: 2024, Month: time.June, Day: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "14:30"}, slots)
}

func TestBookedSlots_EmptyDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	slots, err := client.BookedSlots(context.Background(), schedule.Date{Year: 2024, Month: time.June, Day: 1})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/services", r.URL.Path)
		w.Write([]byte(`{"data":[{"documentId":"abc","Name":"Manicure","PriceCents":3500,"DurationMinutes":45}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	services, err := client.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Manicure", services[0].Name)
	assert.Equal(t, int64(3500), services[0].PriceCents)
}

func TestServiceByID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.ServiceByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCache_SettingsServedFromCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"data":{"StartTimeHour":9,"EndTimeHour":17,"SlotIntervalMinutes":30}}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	client := NewClient(srv.URL, "")
	client.UseRedisCache(rdb, time.Minute)

	ctx := context.Background()
	first, err := client.BookingSettings(ctx)
	require.NoError(t, err)
	second, err := client.BookingSettings(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second read must come from cache")
}

func TestRedisCache_BookedSlotsNeverCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"data":["10:00"]}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	client := NewClient(srv.URL, "")
	client.UseRedisCache(rdb, time.Minute)

	ctx := context.Background()
	date := schedule.Date{Year: 2024, Month: time.June, Day: 1}
	_, err := client.BookedSlots(ctx, date)
	require.NoError(t, err)
	_, err = client.BookedSlots(ctx, date)
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load(), "booked slots must always hit upstream")
}

func TestDoGet_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Services(context.Background())
	assert.Error(t, err)
}
