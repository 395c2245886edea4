// Package history records visited pages.
package history

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrEmpty is returned by Last when nothing has been recorded.
var ErrEmpty = errors.New("history: empty")

// Entry is one visited URI.
type Entry struct {
	URI       string    `json:"uri"`
	Title     string    `json:"title,omitempty"`
	LastVisit time.Time `json:"last_visit"`
}

// Store persists visited URIs. Recording an existing URI replaces its
// title and refreshes its visit time.
type Store interface {
	Record(ctx context.Context, uri, title string) error
	Contains(ctx context.Context, uri string) (bool, error)
	Last(ctx context.Context) (Entry, error)
	All(ctx context.Context) ([]Entry, error)
}

// sortRecentFirst orders entries by visit time, most recent first.
func sortRecentFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastVisit.After(entries[j].LastVisit)
	})
}
