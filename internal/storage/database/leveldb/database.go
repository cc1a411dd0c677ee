// Package leveldb implements database.DB on syndtr/goleveldb.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// DB is a leveldb database opened from a directory
type DB struct {
	db *leveldb.DB
	wo *opt.WriteOptions
}

// Open opens or creates the database at path
func Open(path string, sync bool) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &DB{db: db, wo: &opt.WriteOptions{Sync: sync}}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrNotFound):
		return database.ErrKeyNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return database.ErrDBClosed
	default:
		return err
	}
}

func (l *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Get returns a fresh slice
	val, err := l.db.Get(key, nil)
	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

func (l *DB) Write(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(l.db.Put(key, value, l.wo))
}

func (l *DB) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(l.db.Delete(key, l.wo))
}

func (l *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			batch.Put(op.Key, op.Value)
		case database.BatchDelete:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("%w: unknown batch operation type: %d", database.ErrBatchOperationFailed, op.Type)
		}
	}
	return translate(l.db.Write(batch, l.wo))
}

func (l *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Iterator{iter: l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}, nil
}

func (l *DB) Close() error {
	return l.db.Close()
}

// Iterator copies keys and values out of the leveldb iterator, whose
// buffers are reused between steps
type Iterator struct {
	iter iterator.Iterator
}

func (it *Iterator) Next() bool {
	return it.iter.Next()
}

func (it *Iterator) Key() []byte {
	return append([]byte(nil), it.iter.Key()...)
}

func (it *Iterator) Value() []byte {
	return append([]byte(nil), it.iter.Value()...)
}

func (it *Iterator) Error() error {
	return translate(it.iter.Error())
}

func (it *Iterator) Close() error {
	it.iter.Release()
	return nil
}

// Manager opens one leveldb directory per name below a root path
type Manager struct {
	mu   sync.Mutex
	path string
	sync bool
	dbs  map[string]*DB
}

func NewManager(path string, sync bool) *Manager {
	return &Manager{path: path, sync: sync, dbs: make(map[string]*DB)}
}

func (m *Manager) OpenDB(name string) (database.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, exists := m.dbs[name]; exists {
		return db, nil
	}
	db, err := Open(filepath.Join(m.path, name+".ldb"), m.sync)
	if err != nil {
		return nil, err
	}
	m.dbs[name] = db
	return db, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for name, db := range m.dbs {
		if err := db.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close database %s: %w", name, err)
		}
		delete(m.dbs, name)
	}
	return lastErr
}
