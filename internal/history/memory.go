package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. With maxEntries > 0 it keeps at most
// that many entries, dropping the oldest beyond the cap; 0 means unbounded.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []Entry // newest first
	maxEntries int
}

// NewMemoryStore creates a MemoryStore capped at maxEntries (0 = unbounded).
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{maxEntries: maxEntries}
}

func (s *MemoryStore) Add(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]Entry{e}, s.entries...)
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
