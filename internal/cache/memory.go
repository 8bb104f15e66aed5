package cache

import (
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with per-entry TTL. Expired entries
// are dropped lazily on read and swept periodically while the store is
// running.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem

	stopSweep chan struct{}
	sweepDone chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[string]memoryItem),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(s.items, key)
		return nil, false
	}
	return item.value, true
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
}

// Size returns the number of entries currently held, expired or not.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// CleanExpired removes all expired entries and returns how many were dropped.
func (s *MemoryStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for key, item := range s.items {
		if now.After(item.expiresAt) {
			delete(s.items, key)
			cleaned++
		}
	}
	return cleaned
}

// StartSweep begins periodic cleanup of expired entries.
func (s *MemoryStore) StartSweep(interval time.Duration) {
	go func() {
		defer close(s.sweepDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.CleanExpired()
			case <-s.stopSweep:
				return
			}
		}
	}()
}

// StopSweep stops the cleanup goroutine started by StartSweep.
func (s *MemoryStore) StopSweep() {
	close(s.stopSweep)
	<-s.sweepDone
}
