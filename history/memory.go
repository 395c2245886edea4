package history

import (
	"context"
	"time"

	"github.com/go4org/hashtriemap"
)

// MemoryStore is an in-memory Store keyed by URI.
type MemoryStore struct {
	entries hashtriemap.HashTrieMap[string, Entry]
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Record(ctx context.Context, uri, title string) error {
	m.entries.Store(uri, Entry{URI: uri, Title: title, LastVisit: m.now()})
	return nil
}

func (m *MemoryStore) Contains(ctx context.Context, uri string) (bool, error) {
	_, ok := m.entries.Load(uri)
	return ok, nil
}

func (m *MemoryStore) Last(ctx context.Context) (Entry, error) {
	var last Entry
	found := false
	m.entries.Range(func(_ string, e Entry) bool {
		if !found || e.LastVisit.After(last.LastVisit) {
			last, found = e, true
		}
		return true
	})
	if !found {
		return Entry{}, ErrEmpty
	}
	return last, nil
}

func (m *MemoryStore) All(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	m.entries.Range(func(_ string, e Entry) bool {
		entries = append(entries, e)
		return true
	})
	sortRecentFirst(entries)
	return entries, nil
}
