package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// KV is the LevelDB keyspace under a witness store.
type KV struct {
	db       *leveldb.DB
	readOnly bool
}

// OpenKV opens or creates a database at path, in memory when path is empty.
// A read-only database must already exist.
func OpenKV(path string, readOnly bool) (*KV, error) {
	var (
		db  *leveldb.DB
		err error
	)
	o := &opt.Options{ReadOnly: readOnly, ErrorIfMissing: readOnly}
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), o)
	} else {
		db, err = leveldb.OpenFile(path, o)
	}
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return &KV{db: db, readOnly: readOnly}, nil
}

// Get returns (nil, false, nil) for a missing key.
func (kv *KV) Get(key []byte) ([]byte, bool, error) {
	data, err := kv.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return data, true, nil
}

func (kv *KV) Has(key []byte) (bool, error) {
	return kv.db.Has(key, nil)
}

// Batch collects writes applied atomically by Write.
type Batch struct {
	b leveldb.Batch
}

func (b *Batch) Put(key, value []byte) { b.b.Put(key, value) }
func (b *Batch) Delete(key []byte)     { b.b.Delete(key) }
func (b *Batch) Len() int              { return b.b.Len() }

func (kv *KV) Write(b *Batch) error {
	if kv.readOnly {
		return leveldb.ErrReadOnly
	}
	return kv.db.Write(&b.b, &opt.WriteOptions{Sync: true})
}

// Iterate calls fn for every key under prefix in key order, stopping at the
// first error. key and value are only valid during the call.
func (kv *KV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := kv.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate %q: %w", prefix, err)
	}
	return nil
}

func (kv *KV) Close() error {
	return kv.db.Close()
}
