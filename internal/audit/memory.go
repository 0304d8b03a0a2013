package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps the trail in a slice. Used by tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryStore builds an empty trail.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (m *InMemoryStore) Append(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *InMemoryStore) List(_ context.Context, filter Filter) ([]Entry, int, error) {
	filter = filter.Normalize()
	m.mu.RLock()
	matched := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.UserID != "" && entry.UserID != filter.UserID {
			continue
		}
		if filter.Resource != "" && entry.Resource != filter.Resource {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if !filter.From.IsZero() && entry.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && entry.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, entry)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []Entry{}, total, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *InMemoryStore) ActionCounts(_ context.Context, since time.Time) (map[Action]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[Action]int)
	for _, entry := range m.entries {
		if entry.CreatedAt.Before(since) {
			continue
		}
		counts[entry.Action]++
	}
	return counts, nil
}

// Len reports the current trail size. Test helper.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Store = (*InMemoryStore)(nil)
