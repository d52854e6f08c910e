package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	updatedAt time.Time
}

// MemoryStore provides a thread-safe in-process Store.
type MemoryStore struct {
	entries map[string]entry
	mu      sync.RWMutex
	logger  *zap.Logger
	now     func() time.Time

	// Statistics (accessed atomically)
	hits   uint64
	misses uint64
	writes uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		logger:  logger.Named("memory-cache"),
		now:     time.Now,
	}
}

// Get returns a copy of the value stored under key, if it has not expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		atomic.AddUint64(&s.misses, 1)
		return nil, false, nil
	}

	atomic.AddUint64(&s.hits, 1)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	e := entry{
		value:     append([]byte(nil), value...),
		updatedAt: now,
	}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	atomic.AddUint64(&s.writes, 1)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Stats returns entry count and hit/miss/write counters.
func (s *MemoryStore) Stats() (entries int, hits, misses, writes uint64) {
	s.mu.RLock()
	entries = len(s.entries)
	s.mu.RUnlock()

	return entries,
		atomic.LoadUint64(&s.hits),
		atomic.LoadUint64(&s.misses),
		atomic.LoadUint64(&s.writes)
}

// CleanupStale removes expired entries and entries not updated within maxAge.
func (s *MemoryStore) CleanupStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-maxAge)
	removed := 0

	for key, e := range s.entries {
		expired := !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
		if expired || e.updatedAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Cleaned up stale entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.entries)))
	}
	return removed
}

// StartJanitor runs CleanupStale every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupStale(maxAge)
			}
		}
	}()
}

var _ Store = (*MemoryStore)(nil)
