package dataset

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Store persists dataset snapshots (e.g. one per time slice) in badger,
// with an in-process hot cache in front so repeated slice switches don't
// touch disk.
type Store struct {
	db  *badger.DB
	hot sync.Map
}

func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a snapshot under the given key (typically a date index).
func (s *Store) Put(key string, d *Dataset) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return err
	}
	s.hot.Store(key, d)
	return nil
}

// Get returns the snapshot for key, or ok=false if it was never stored.
func (s *Store) Get(key string) (*Dataset, bool, error) {
	if v, ok := s.hot.Load(key); ok {
		return v.(*Dataset), true, nil
	}
	var d *Dataset
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d = &Dataset{}
			return json.Unmarshal(val, d)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.hot.Store(key, d)
	return d, true, nil
}

// Keys lists every stored snapshot key in badger's iteration order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}
