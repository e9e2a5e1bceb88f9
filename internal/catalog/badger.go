package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const recordPrefix = "uploads:"

// Badger stores records in an embedded key-value store, keyed by stored name.
type Badger struct {
	db *badger.DB
}

// recordKey returns the key used for a given stored name.
func recordKey(storedName string) []byte {
	return []byte(recordPrefix + storedName)
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string) (*Badger, error) {
	if dir == "" {
		return nil, errors.New("badger dir is empty")
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Record(_ context.Context, rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.StoredName), val)
	})
	if err != nil {
		return fmt.Errorf("put record %s: %w", rec.StoredName, err)
	}
	return nil
}

func (b *Badger) Get(_ context.Context, storedName string) (Record, error) {
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(storedName))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get record %s: %w", storedName, err)
	}
	return rec, nil
}

func (b *Badger) Count(_ context.Context) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (b *Badger) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
