package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempts in a process-local map.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]time.Time)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.attempts[key]...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, attempts []time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(attempts) == 0 {
		delete(m.attempts, key)
		return nil
	}
	m.attempts[key] = append([]time.Time(nil), attempts...)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, attempts := range m.attempts {
		i := 0
		for i < len(attempts) && !attempts[i].After(cutoff) {
			i++
		}
		switch {
		case i == len(attempts):
			delete(m.attempts, key)
			evicted++
		case i > 0:
			m.attempts[key] = attempts[i:]
		}
	}
	return evicted, nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}
