// Package ratewindow implements sliding-window rate limiting over a
// pluggable store. The limiter is an advisory deterrent: concurrent callers
// may under-count, and loss of store state only weakens throttling. Vote
// uniqueness is enforced by the votes table constraint, never here.
package ratewindow

import (
	"context"
	"sync"
	"time"
)

// Store persists the recent-timestamp list for a window key with a TTL.
// Implementations are best-effort; a read-modify-write race between two
// callers is tolerated.
type Store interface {
	Get(ctx context.Context, key string) ([]time.Time, error)
	Set(ctx context.Context, key string, stamps []time.Time, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	stamps    []time.Time
	expiresAt time.Time
}

// MemoryStore is a process-local Store backed by a mutex-guarded map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}

	stamps := make([]time.Time, len(entry.stamps))
	copy(stamps, entry.stamps)
	return stamps, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, stamps []time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		stamps:    stamps,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep drops expired entries. Intended for a periodic housekeeping call.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}
