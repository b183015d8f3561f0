// Package content is the client for the headless content backend that owns
// all salon business data: booking settings, reserved slots, services,
// promotions, staff and policies.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"glowbook/internal/schedule"
)

// ErrNotFound indicates the requested entry does not exist upstream.
var ErrNotFound = errors.New("content: not found")

// Client is an HTTP client for the content backend's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// Service is a bookable salon service as published by the backend.
type Service struct {
	ID          string `json:"documentId"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	PriceCents  int64  `json:"PriceCents"`
	DurationMin int    `json:"DurationMinutes"`
}

// Promotion is an active marketing promotion.
type Promotion struct {
	ID          string `json:"documentId"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	IsActive    bool   `json:"IsActive"`
}

// Staff is a bookable staff member.
type Staff struct {
	ID          string `json:"documentId"`
	Name        string `json:"Name"`
	Role        string `json:"Role"`
	IsAvailable bool   `json:"IsAvailable"`
}

// Policy is the salon's booking policy text and deposit rule.
type Policy struct {
	Title          string `json:"Title"`
	Body           string `json:"Body"`
	DepositPercent int    `json:"DepositPercent"`
}

// NewClient constructs a client for the given backend base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for slow-moving GET
// endpoints (settings, services, promotions). Booked slots are never cached:
// stale reservations would misclassify availability.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// BookingSettings fetches the venue's booking configuration. A backend that
// has not published settings yet yields (nil, nil); callers must treat that
// as "not loaded" and skip slot computation.
func (c *Client) BookingSettings(ctx context.Context) (*schedule.Settings, error) {
	endpoint := c.baseURL + "/api/booking-setting"
	cacheKey := "content:booking-settings"

	var wrap struct {
		Data *schedule.Settings `json:"data"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Data, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Data, nil
}

// BookedSlots fetches the complete set of reserved "HH:MM" slots for a
// venue-local date. An empty list means a fully open day.
func (c *Client) BookedSlots(ctx context.Context, date schedule.Date) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/appointments/booked-slots?date=%s", c.baseURL, url.QueryEscape(date.String()))

	var wrap struct {
		Data []string `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	return wrap.Data, nil
}

// Services returns all published salon services.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	endpoint := c.baseURL + "/api/services?populate=*"
	cacheKey := "content:services"

	var wrap struct {
		Data []Service `json:"data"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Data, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Data, nil
}

// ServiceByID fetches a single service by its public identifier.
func (c *Client) ServiceByID(ctx context.Context, id string) (*Service, error) {
	endpoint := fmt.Sprintf("%s/api/services/%s?populate=*", c.baseURL, url.PathEscape(id))

	var wrap struct {
		Data *Service `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	if wrap.Data == nil {
		return nil, ErrNotFound
	}
	return wrap.Data, nil
}

// ActivePromotions returns promotions currently flagged active.
func (c *Client) ActivePromotions(ctx context.Context) ([]Promotion, error) {
	endpoint := c.baseURL + "/api/promotions?filters[IsActive][$eq]=true&populate=*"
	cacheKey := "content:promotions"

	var wrap struct {
		Data []Promotion `json:"data"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Data, nil
	}

	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Data, nil
}

// AvailableStaff returns staff members currently taking bookings.
func (c *Client) AvailableStaff(ctx context.Context) ([]Staff, error) {
	endpoint := c.baseURL + "/api/booking-setting?populate[available_staffs][filters][IsAvailable][$eq]=true"

	var wrap struct {
		Data struct {
			AvailableStaffs []Staff `json:"available_staffs"`
		} `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return wrap.Data.AvailableStaffs, nil
}

// BookingPolicy returns the salon's booking policy.
func (c *Client) BookingPolicy(ctx context.Context) (*Policy, error) {
	endpoint := c.baseURL + "/api/booking-policy?populate=*"

	var wrap struct {
		Data *Policy `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return wrap.Data, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("content backend: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
