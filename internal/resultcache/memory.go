package resultcache

import (
	"sync"
	"time"
)

// MemoryStore is the bounded in-process fallback used when the backing
// store is unreachable. Entries expire by TTL and the least recently
// used entry is evicted when the bound is reached, so a long outage
// cannot grow the process without limit.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
}

type memoryEntry struct {
	value    []byte
	expires  time.Time
	accessed time.Time
}

// DefaultMaxEntries bounds the fallback store. Simulation results are a
// few hundred KB each; this keeps the worst case in the low hundreds of
// MB.
const DefaultMaxEntries = 512

// NewMemoryStore creates a bounded in-process store.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value if present and unexpired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	e.accessed = time.Now()
	return e.value, true
}

// Set stores a value with a TTL, evicting the least recently used entry
// when the store is full.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLRU()
	}
	now := time.Now()
	s.entries[key] = &memoryEntry{
		value:    append([]byte(nil), value...),
		expires:  now.Add(ttl),
		accessed: now,
	}
}

// Len returns the number of live entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLRU removes the least recently accessed entry. Caller holds the
// lock.
func (s *MemoryStore) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for key, e := range s.entries {
		if first || e.accessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.accessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
