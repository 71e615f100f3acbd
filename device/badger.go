package device

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rstms/flashfs"
)

var pageKeyPrefix = []byte("page/")

// BadgerStoreConfig configures a BadgerStore.
type BadgerStoreConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// BadgerStore persists pages as badger keys. Pages that were never
// written (or were erased) have no key and read back erased.
type BadgerStore struct {
	geom flashfs.Geometry
	db   *badger.DB
}

var _ PageStore = (*BadgerStore)(nil)

func OpenBadgerStore(cfg BadgerStoreConfig, geom flashfs.Geometry) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger store: path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: %w", err)
	}
	return &BadgerStore{geom: geom, db: db}, nil
}

func pageKey(page int) []byte {
	key := make([]byte, len(pageKeyPrefix)+4)
	copy(key, pageKeyPrefix)
	binary.BigEndian.PutUint32(key[len(pageKeyPrefix):], uint32(page))
	return key
}

func (s *BadgerStore) ReadPage(page int, dst []byte) error {
	if !s.geom.ValidPage(page) || len(dst) < s.geom.PageSize {
		return fmt.Errorf("badger read page %d: %w", page, flashfs.ErrOutOfRange)
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pageKey(page))
		if err == badger.ErrKeyNotFound {
			fill(dst[:s.geom.PageSize], Erased)
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(dst[:s.geom.PageSize], val)
			return nil
		})
	})
}

func (s *BadgerStore) WritePage(page int, src []byte) error {
	if !s.geom.ValidPage(page) || len(src) < s.geom.PageSize {
		return fmt.Errorf("badger write page %d: %w", page, flashfs.ErrOutOfRange)
	}
	value := make([]byte, s.geom.PageSize)
	copy(value, src)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pageKey(page), value)
	})
}

func (s *BadgerStore) Erase() error {
	return s.db.DropPrefix(pageKeyPrefix)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
