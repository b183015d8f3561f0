// Package cart holds per-visitor storefront session state: the assembled
// service cart and one-shot UI flags such as "promo popup already shown".
// State is explicit and owned by a store with expiry, never ambient globals.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is a service line in the cart.
type Item struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	PriceCents  int64  `json:"price_cents"`
	Quantity    int    `json:"quantity"`
}

// Session is one visitor's browsing session.
type Session struct {
	ID         string
	StartedAt  time.Time
	UpdatedAt  time.Time
	mu         sync.Mutex
	items      []Item
	promoShown bool
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, StartedAt: now, UpdatedAt: now}
}

// AddItem adds a service to the cart, merging quantity for a repeated
// service.
func (s *Session) AddItem(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()

	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	for i := range s.items {
		if s.items[i].ServiceID == item.ServiceID {
			s.items[i].Quantity += item.Quantity
			return
		}
	}
	s.items = append(s.items, item)
}

// RemoveItem drops a service from the cart.
func (s *Session) RemoveItem(serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()

	for i := range s.items {
		if s.items[i].ServiceID == serviceID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Items returns a copy of the cart lines.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// TotalCents sums the cart.
func (s *Session) TotalCents() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

// Clear empties the cart after a completed booking.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.UpdatedAt = time.Now()
}

// MarkPromoShown records that the promotional popup was displayed; it
// reports whether this call was the first.
func (s *Session) MarkPromoShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promoShown {
		return false
	}
	s.promoShown = true
	s.UpdatedAt = time.Now()
	return true
}

// PromoShown reports whether the popup was already displayed this session.
func (s *Session) PromoShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promoShown
}

func (s *Session) isExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// Store manages visitor sessions.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewStore creates a session store with the given idle timeout.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Get returns the session with the given id, or nil.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// GetOrCreate returns the live session for id, creating a fresh one when
// the id is empty, unknown or expired.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if session, ok := st.sessions[id]; ok && !session.isExpired(st.timeout) {
			return session
		}
	}

	session := newSession(uuid.NewString())
	st.sessions[session.ID] = session
	return session
}

// Delete ends a session explicitly.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Cleanup removes expired sessions and returns how many were dropped.
func (st *Store) Cleanup() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, session := range st.sessions {
		if session.isExpired(st.timeout) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunCleanup sweeps expired sessions until the context ends.
func (st *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Cleanup()
		}
	}
}
