// Package pebble implements database.DB on cockroachdb/pebble.
package pebble

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/cockroachdb/pebble"
)

type DB struct {
	db     *pebble.DB
	closed *atomic.Bool
	sync   bool
}

func NewDB(db *pebble.DB, closed *atomic.Bool, sync bool) *DB {
	return &DB{db: db, closed: closed, sync: sync}
}

func (p *DB) writeOptions() *pebble.WriteOptions {
	if p.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (p *DB) check(ctx context.Context) error {
	if p.db == nil || p.closed.Load() {
		return database.ErrDBClosed
	}
	return ctx.Err()
}

func (p *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}

	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, database.ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value out
	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (p *DB) Write(ctx context.Context, key, value []byte) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.db.Set(key, value, p.writeOptions())
}

func (p *DB) Delete(ctx context.Context, key []byte) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.db.Delete(key, p.writeOptions())
}

func (p *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	if err := p.check(ctx); err != nil {
		return err
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case database.BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return fmt.Errorf("%w: %v", database.ErrBatchOperationFailed, err)
			}
		case database.BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return fmt.Errorf("%w: %v", database.ErrBatchOperationFailed, err)
			}
		default:
			return fmt.Errorf("%w: unknown batch operation type: %d", database.ErrBatchOperationFailed, op.Type)
		}
	}

	return batch.Commit(p.writeOptions())
}

type Iterator struct {
	iter    *pebble.Iterator
	started bool
	err     error
}

func (p *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, err
	}
	return &Iterator{iter: iter}, nil
}

func (it *Iterator) Next() bool {
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

// Key returns a copy of the current key
func (it *Iterator) Key() []byte {
	if !it.iter.Valid() {
		return nil
	}
	return append([]byte(nil), it.iter.Key()...)
}

// Value returns a copy of the current value
func (it *Iterator) Value() []byte {
	if !it.iter.Valid() {
		return nil
	}
	return append([]byte(nil), it.iter.Value()...)
}

func (it *Iterator) Error() error {
	if err := it.iter.Error(); err != nil {
		return err
	}
	return it.err
}

func (it *Iterator) Close() error {
	return it.iter.Close()
}
