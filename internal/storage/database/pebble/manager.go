package pebble

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/cockroachdb/pebble"
)

// handle pairs an open pebble instance with the flag its DB views check
type handle struct {
	db     *pebble.DB
	closed *atomic.Bool
}

// Manager keeps one pebble directory per database name
type Manager struct {
	dbs  map[string]handle
	path string
	sync bool
	mu   sync.Mutex
}

// NewManager opens databases as directories below path. With sync set every
// write is flushed to disk before it returns.
func NewManager(path string, sync bool) *Manager {
	return &Manager{
		dbs:  make(map[string]handle),
		path: path,
		sync: sync,
	}
}

func (m *Manager) OpenDB(name string) (database.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, exists := m.dbs[name]; exists {
		return NewDB(h.db, h.closed, m.sync), nil // Already opened
	}

	db, err := pebble.Open(filepath.Join(m.path, name), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", name, err)
	}

	h := handle{db: db, closed: new(atomic.Bool)}
	m.dbs[name] = h
	return NewDB(h.db, h.closed, m.sync), nil
}

// CloseDB closes one database; its views fail with database.ErrDBClosed
func (m *Manager) CloseDB(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, exists := m.dbs[name]
	if !exists {
		return fmt.Errorf("database %s not found", name)
	}
	delete(m.dbs, name)
	h.closed.Store(true)
	return h.db.Close()
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, h := range m.dbs {
		h.closed.Store(true)
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database %s: %w", name, err))
		}
		delete(m.dbs, name)
	}
	return errors.Join(errs...)
}
