package history

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type quietLogger struct{}

func (l *quietLogger) Errorf(string, ...interface{})   {}
func (l *quietLogger) Warningf(string, ...interface{}) {}
func (l *quietLogger) Infof(string, ...interface{})    {}
func (l *quietLogger) Debugf(string, ...interface{})   {}

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(&quietLogger{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// clock returns increasing times one minute apart.
func clock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func stores(t *testing.T) map[string]Store {
	mem := NewMemoryStore()
	mem.now = clock()
	bs := NewBadgerStore(openDB(t))
	bs.now = clock()
	return map[string]Store{"memory": mem, "badger": bs}
}

func TestStores(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Last(ctx)
			require.ErrorIs(t, err, ErrEmpty)
			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Empty(t, all)

			require.NoError(t, s.Record(ctx, "gemini://a/", "A"))
			require.NoError(t, s.Record(ctx, "gemini://b/", ""))

			ok, err := s.Contains(ctx, "gemini://a/")
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = s.Contains(ctx, "gemini://c/")
			require.NoError(t, err)
			require.False(t, ok)

			last, err := s.Last(ctx)
			require.NoError(t, err)
			require.Equal(t, "gemini://b/", last.URI)

			// Visiting again refreshes the entry.
			require.NoError(t, s.Record(ctx, "gemini://a/", "A again"))
			all, err = s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			require.Equal(t, "gemini://a/", all[0].URI)
			require.Equal(t, "A again", all[0].Title)
			require.Equal(t, "gemini://b/", all[1].URI)
			require.True(t, all[0].LastVisit.After(all[1].LastVisit))
		})
	}
}
