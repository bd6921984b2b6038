package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dejobratic/ferretec/internal/store/ports"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 10_000
)

type entry struct {
	response ports.StoredResponse
	savedAt  time.Time
}

// Store keeps purchase responses keyed by Idempotency-Key so a retried request
// replays the first answer. Entries expire after ttl; when full, the oldest
// entry is evicted.
type Store struct {
	mu         sync.Mutex
	items      map[string]entry
	order      []string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewStore(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the stored response for key, or nil when absent or expired.
func (s *Store) Get(_ context.Context, key string) (*ports.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || s.expired(e) {
		return nil, nil
	}
	resp := e.response
	resp.Body = slices.Clone(e.response.Body)
	return &resp, nil
}

// Save stores or overwrites the response for key.
func (s *Store) Save(_ context.Context, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()

	if _, exists := s.items[key]; exists {
		s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	}
	for len(s.order) >= s.maxEntries {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}

	response.Body = slices.Clone(response.Body)
	s.items[key] = entry{response: response, savedAt: s.now()}
	s.order = append(s.order, key)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) expired(e entry) bool {
	return s.now().Sub(e.savedAt) >= s.ttl
}

// evictExpired drops expired keys from the front of the insertion order.
func (s *Store) evictExpired() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		if !s.expired(s.items[oldest]) {
			return
		}
		delete(s.items, oldest)
		s.order = s.order[1:]
	}
}
