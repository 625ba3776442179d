package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jmrebull/refund-service/internal/ports"
)

// LockoutStore tracks auth failures per client key without Redis. Entries
// whose block has expired are dropped lazily on access.
type LockoutStore struct {
	mu      sync.Mutex
	entries map[string]lockoutEntry
}

type lockoutEntry struct {
	failures     []time.Time
	blockedUntil *time.Time
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{entries: make(map[string]lockoutEntry)}
}

func (s *LockoutStore) Get(_ context.Context, key string) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return ports.LockoutState{}, nil
	}
	return ports.LockoutState{
		FailedCount:  len(entry.failures),
		BlockedUntil: entry.blockedUntil,
	}, nil
}

func (s *LockoutStore) RecordFailure(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entries[key]
	cutoff := now.Add(-window)
	kept := entry.failures[:0]
	for _, t := range entry.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	entry.failures = append(kept, now)

	if len(entry.failures) >= threshold {
		until := now.Add(window)
		entry.blockedUntil = &until
	} else if entry.blockedUntil != nil && entry.blockedUntil.Before(now) {
		entry.blockedUntil = nil
	}
	s.entries[key] = entry

	return ports.LockoutState{
		FailedCount:  len(entry.failures),
		BlockedUntil: entry.blockedUntil,
	}, nil
}

func (s *LockoutStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
