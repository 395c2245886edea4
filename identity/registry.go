// Package identity manages client certificates and the URLs they are
// presented to.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no identity has the requested ID.
var ErrNotFound = errors.New("identity: not found")

// Key prefixes within the shared database.
const (
	prefixIdentity = "i:"    // i:{id} -> JSON-encoded Identity
	sequenceKey    = "seq:i" // Badger sequence for identity IDs
)

// Identity binds a keystore entry to the URL prefixes it is used for.
type Identity struct {
	ID   uint64   `json:"id"`
	Key  string   `json:"key"`
	Name string   `json:"name,omitempty"`
	URLs []string `json:"urls"`
}

// Registry persists identities in Badger.
type Registry struct {
	db *badger.DB

	seqMu sync.Mutex
	seq   *badger.Sequence
}

// NewRegistry returns a registry using db. Close releases the ID sequence;
// the caller still owns db.
func NewRegistry(db *badger.DB) *Registry {
	return &Registry{db: db}
}

// Close releases the ID sequence.
func (r *Registry) Close() error {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	if r.seq == nil {
		return nil
	}
	err := r.seq.Release()
	r.seq = nil
	return err
}

func identityKey(id uint64) []byte {
	return []byte(prefixIdentity + strconv.FormatUint(id, 10))
}

func (r *Registry) nextID() (uint64, error) {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	if r.seq == nil {
		seq, err := r.db.GetSequence([]byte(sequenceKey), 16)
		if err != nil {
			return 0, err
		}
		r.seq = seq
	}
	for {
		id, err := r.seq.Next()
		if err != nil {
			return 0, err
		}
		// Zero is never handed out so that it can mean "no identity".
		if id != 0 {
			return id, nil
		}
	}
}

// Insert stores a new identity for keystore key and returns its ID.
func (r *Registry) Insert(ctx context.Context, key, name string) (uint64, error) {
	id, err := r.nextID()
	if err != nil {
		return 0, fmt.Errorf("identity: allocate id: %w", err)
	}
	return id, r.put(Identity{ID: id, Key: key, Name: name, URLs: []string{}})
}

// Update replaces stored identities.
func (r *Registry) Update(ctx context.Context, identities ...Identity) error {
	for _, ident := range identities {
		if _, err := r.Get(ctx, ident.ID); err != nil {
			return err
		}
		if err := r.put(ident); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) put(ident Identity) error {
	encoded, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("identity: encode: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(identityKey(ident.ID), encoded)
	})
	if err != nil {
		return fmt.Errorf("identity: store %d: %w", ident.ID, err)
	}
	return nil
}

// Get returns the identity with id.
func (r *Registry) Get(ctx context.Context, id uint64) (Identity, error) {
	var ident Identity
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ident)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Identity{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("identity: get %d: %w", id, err)
	}
	return ident, nil
}

// All returns every identity ordered by ID.
func (r *Registry) All(ctx context.Context) ([]Identity, error) {
	var all []Identity
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixIdentity)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var ident Identity
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ident)
			}); err != nil {
				return err
			}
			all = append(all, ident)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("identity: list: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// Delete removes identities. Their keystore entries are left alone; see
// Provider.Delete.
func (r *Registry) Delete(ctx context.Context, ids ...uint64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(identityKey(id)); err != nil {
				return fmt.Errorf("identity: delete %d: %w", id, err)
			}
		}
		return nil
	})
}
