package cache

import (
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and for uncached
// runs. Same contract as the SQLite store, nothing survives the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.Vector, true, nil
}

func (s *MemoryStore) Put(key, embedderType string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		// First writer wins.
		return nil
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	s.entries[key] = Entry{
		Key:          key,
		EmbedderType: embedderType,
		Vector:       stored,
		CreatedAt:    time.Now(),
	}
	return nil
}

func (s *MemoryStore) Enumerate(fn func(Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
	return nil
}

func (s *MemoryStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{ByType: make(map[string]int)}
	for _, e := range s.entries {
		stats.Entries++
		stats.ByType[e.EmbedderType]++
		stats.Bytes += int64(len(e.Vector) * 4)
	}
	return stats, nil
}
