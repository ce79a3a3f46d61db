package cache

import (
	"sync"
	"time"

	"github.com/funbiscuit/icaliada/internal/utils"
)

// Store is the capability the feed aggregator depends on: a byte cache keyed
// by calendar source identity.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, body []byte)
}

// TTLStore is an in-memory Store whose entries expire a fixed duration after
// insertion. Expired entries are dropped when observed by Get.
type TTLStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   utils.Clock
	entries map[string]entry
}

type entry struct {
	body     []byte
	storedAt time.Time
}

func NewTTLStore(ttl time.Duration) *TTLStore {
	return &TTLStore{
		ttl:     ttl,
		clock:   utils.SystemClock{},
		entries: make(map[string]entry),
	}
}

// NewTTLStoreWithClock is used by tests to control entry expiry.
func NewTTLStoreWithClock(ttl time.Duration, clock utils.Clock) *TTLStore {
	return &TTLStore{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (s *TTLStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.clock.Now().Sub(e.storedAt) >= s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	return e.body, true
}

func (s *TTLStore) Put(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{body: body, storedAt: s.clock.Now()}
}
