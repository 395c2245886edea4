package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// prefixEntry keys hold JSON-encoded entries: h:{uri} -> Entry.
const prefixEntry = "h:"

// BadgerStore is a Store backed by a Badger database shared with other
// components. The caller owns the database.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore returns a store using db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

func entryKey(uri string) []byte {
	return []byte(prefixEntry + uri)
}

func (s *BadgerStore) Record(ctx context.Context, uri, title string) error {
	encoded, err := json.Marshal(Entry{URI: uri, Title: title, LastVisit: s.now()})
	if err != nil {
		return fmt.Errorf("history: encode entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(uri), encoded)
	})
	if err != nil {
		return fmt.Errorf("history: record %s: %w", uri, err)
	}
	return nil
}

func (s *BadgerStore) Contains(ctx context.Context, uri string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(uri))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history: lookup %s: %w", uri, err)
	}
	return true, nil
}

func (s *BadgerStore) Last(ctx context.Context) (Entry, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrEmpty
	}
	return entries[0], nil
}

func (s *BadgerStore) All(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	sortRecentFirst(entries)
	return entries, nil
}
