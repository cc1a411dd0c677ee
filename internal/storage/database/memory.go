package database

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
)

type memItem struct {
	key, value []byte
}

func (i memItem) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(memItem).key) < 0
}

// MemDB is an ordered in-memory DB
type MemDB struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	closed bool
}

// NewMemDB creates an empty in-memory database
func NewMemDB() *MemDB {
	return &MemDB{tree: btree.New(32)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func (m *MemDB) Read(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDBClosed
	}
	found := m.tree.Get(memItem{key: key})
	if found == nil {
		return nil, ErrKeyNotFound
	}
	return clone(found.(memItem).value), nil
}

func (m *MemDB) Write(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	m.tree.ReplaceOrInsert(memItem{key: clone(key), value: clone(value)})
	return nil
}

func (m *MemDB) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	m.tree.Delete(memItem{key: key})
	return nil
}

func (m *MemDB) Batch(ctx context.Context, ops []BatchOperation) error {
	for _, op := range ops {
		if op.Type != BatchPut && op.Type != BatchDelete {
			return fmt.Errorf("%w: unknown batch operation type: %d", ErrBatchOperationFailed, op.Type)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDBClosed
	}
	for _, op := range ops {
		if op.Type == BatchPut {
			m.tree.ReplaceOrInsert(memItem{key: clone(op.Key), value: clone(op.Value)})
		} else {
			m.tree.Delete(memItem{key: op.Key})
		}
	}
	return nil
}

// Iterator returns a snapshot of the range taken when it is created
func (m *MemDB) Iterator(ctx context.Context, start, end []byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDBClosed
	}

	it := &memIterator{pos: -1}
	collect := func(i btree.Item) bool {
		item := i.(memItem)
		it.items = append(it.items, memItem{key: clone(item.key), value: clone(item.value)})
		return true
	}
	switch {
	case start == nil && end == nil:
		m.tree.Ascend(collect)
	case start == nil:
		m.tree.AscendLessThan(memItem{key: end}, collect)
	case end == nil:
		m.tree.AscendGreaterOrEqual(memItem{key: start}, collect)
	default:
		m.tree.AscendRange(memItem{key: start}, memItem{key: end}, collect)
	}
	return it, nil
}

// Len returns the number of stored keys
func (m *MemDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Close releases the contents; later calls fail with ErrDBClosed
func (m *MemDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.tree = btree.New(2)
	return nil
}

type memIterator struct {
	items []memItem
	pos   int
}

func (it *memIterator) Next() bool {
	if it.pos+1 >= len(it.items) {
		it.pos = len(it.items)
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memIterator) Error() error { return nil }

func (it *memIterator) Close() error {
	it.items = nil
	return nil
}

// MemManager hands out one MemDB per name
type MemManager struct {
	mu  sync.Mutex
	dbs map[string]*MemDB
}

// NewMemManager creates a manager of in-memory databases
func NewMemManager() *MemManager {
	return &MemManager{dbs: make(map[string]*MemDB)}
}

func (m *MemManager) OpenDB(name string) (DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if db, exists := m.dbs[name]; exists {
		return db, nil
	}
	db := NewMemDB()
	m.dbs[name] = db
	return db, nil
}

func (m *MemManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, db := range m.dbs {
		db.Close()
		delete(m.dbs, name)
	}
	return nil
}
