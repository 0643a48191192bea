package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/duel/internal/domain/model"
)

// Memory is a Persister backed by a map. It is the "memory" store driver and
// the reference for the versioning rules the SQL drivers implement.
type Memory struct {
	mu     sync.Mutex
	items  map[string]model.Item
	closed bool
}

// NewMemory returns an empty in-memory persister.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]model.Item)}
}

// LoadAll implements Persister.
func (m *Memory) LoadAll(_ context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]model.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnsureItems implements Persister.
func (m *Memory) EnsureItems(_ context.Context, items []model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, it := range items {
		if _, ok := m.items[it.ID]; !ok {
			m.items[it.ID] = it
		}
	}
	return nil
}

// SaveResult implements Persister.
func (m *Memory) SaveResult(_ context.Context, res model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.upsert(res.Winner)
	m.upsert(res.Loser)
	return nil
}

func (m *Memory) upsert(it model.Item) {
	if cur, ok := m.items[it.ID]; ok && cur.Comparisons >= it.Comparisons {
		return
	}
	m.items[it.ID] = it
}

// Close implements Persister.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
