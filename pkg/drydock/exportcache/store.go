package exportcache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no export is recorded for a reference.
var ErrNotFound = errors.New("export cache entry not found")

// Store wraps Badger for export cache operations.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates an export cache store at the given path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the recorded export for an image reference.
func (s *Store) Get(ref string) (*Entry, error) {
	key := MakeKey(ref)
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(entry.Decode)
	})

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put records an export for an image reference.
func (s *Store) Put(ref string, entry *Entry) error {
	key := MakeKey(ref)
	value, err := entry.Encode()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes the recorded export for an image reference.
func (s *Store) Delete(ref string) error {
	key := MakeKey(ref)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Clear removes every entry, old format versions included.
func (s *Store) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats summarizes the current-format entries.
type Stats struct {
	Entries      int
	TarballBytes int64
}

// CollectStats walks all current-format entries and totals their sizes.
func (s *Store) CollectStats() (*Stats, error) {
	stats := &Stats{}
	prefix := KeyPrefix()

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(entry.Decode); err != nil {
				return err
			}
			stats.Entries++
			stats.TarballBytes += entry.SizeBytes
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return stats, nil
}
