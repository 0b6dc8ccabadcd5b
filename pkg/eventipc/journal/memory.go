package journal

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds a MemoryStore created with capacity 0.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent incidents in memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	capacity  int
	incidents []Incident // oldest first
	counts    map[Kind]int
	closed    bool
}

// NewMemoryStore creates a store holding at most capacity incidents.
// Counts keep growing after old incidents are evicted.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		counts:   make(map[Kind]int),
	}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, inc Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	inc = normalize(inc)
	if len(m.incidents) == m.capacity {
		m.incidents = append(m.incidents[:0], m.incidents[1:]...)
	}
	m.incidents = append(m.incidents, inc)
	m.counts[inc.Kind]++
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	n := len(m.incidents)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Incident, 0, n)
	for i := len(m.incidents) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.incidents[i])
	}
	return out, nil
}

// CountByKind implements Store.
func (m *MemoryStore) CountByKind(context.Context) (map[Kind]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make(map[Kind]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

// Len returns the number of incidents currently held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.incidents)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.incidents = nil
	return nil
}
