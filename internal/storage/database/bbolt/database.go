// Package bbolt implements database.DB on a single bucket of a bbolt file.
package bbolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"go.etcd.io/bbolt"
)

type DB struct {
	db     *bbolt.DB
	bucket []byte
}

func NewDB(db *bbolt.DB, bucket []byte) *DB {
	return &DB{
		db:     db,
		bucket: bucket,
	}
}

var errBucketMissing = errors.New("bucket not found")

func translate(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return database.ErrDBClosed
	}
	return err
}

func (b *DB) view(ctx context.Context, fn func(bucket *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: %s", errBucketMissing, b.bucket)
		}
		return fn(bucket)
	}))
}

func (b *DB) update(ctx context.Context, fn func(bucket *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: %s", errBucketMissing, b.bucket)
		}
		return fn(bucket)
	}))
}

func (b *DB) Read(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := b.view(ctx, func(bucket *bbolt.Bucket) error {
		v := bucket.Get(key)
		if v == nil {
			return database.ErrKeyNotFound
		}
		// Values are only valid during the transaction
		value = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *DB) Write(ctx context.Context, key []byte, value []byte) error {
	return b.update(ctx, func(bucket *bbolt.Bucket) error {
		return bucket.Put(key, value)
	})
}

func (b *DB) Delete(ctx context.Context, key []byte) error {
	return b.update(ctx, func(bucket *bbolt.Bucket) error {
		return bucket.Delete(key)
	})
}

func (b *DB) Batch(ctx context.Context, ops []database.BatchOperation) error {
	return b.update(ctx, func(bucket *bbolt.Bucket) error {
		for _, op := range ops {
			var err error
			switch op.Type {
			case database.BatchPut:
				err = bucket.Put(op.Key, op.Value)
			case database.BatchDelete:
				err = bucket.Delete(op.Key)
			default:
				return fmt.Errorf("%w: unknown batch operation type: %d", database.ErrBatchOperationFailed, op.Type)
			}
			if err != nil {
				return fmt.Errorf("%w: %v", database.ErrBatchOperationFailed, err)
			}
		}
		return nil
	})
}

// Iterator holds a read transaction open until it is closed
type Iterator struct {
	tx      *bbolt.Tx
	cursor  *bbolt.Cursor
	started bool
	start   []byte
	end     []byte
	key     []byte
	value   []byte
}

func (b *DB) Iterator(ctx context.Context, start, end []byte) (database.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := b.db.Begin(false) // Read-only transaction
	if err != nil {
		return nil, translate(err)
	}

	bucket := tx.Bucket(b.bucket)
	if bucket == nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s", errBucketMissing, b.bucket)
	}

	return &Iterator{
		tx:     tx,
		cursor: bucket.Cursor(),
		start:  start,
		end:    end,
	}, nil
}

func (it *Iterator) Next() bool {
	var k, v []byte
	if !it.started {
		it.started = true
		if it.start == nil {
			k, v = it.cursor.First()
		} else {
			k, v = it.cursor.Seek(it.start)
		}
	} else {
		k, v = it.cursor.Next()
	}

	if k == nil || (it.end != nil && bytes.Compare(k, it.end) >= 0) {
		it.key, it.value = nil, nil
		return false
	}

	it.key = append([]byte{}, k...)
	it.value = append([]byte{}, v...)
	return true
}

func (it *Iterator) Key() []byte {
	return it.key
}

func (it *Iterator) Value() []byte {
	return it.value
}

func (it *Iterator) Error() error {
	return nil
}

func (it *Iterator) Close() error {
	return it.tx.Rollback()
}
