package bbolt

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"go.etcd.io/bbolt"
)

// openTimeout bounds the wait for another process's file lock
const openTimeout = time.Second

// Manager keeps one bbolt file per name, each holding a bucket of the same name
type Manager struct {
	mu   sync.Mutex
	dbs  map[string]*bbolt.DB
	path string
	sync bool
}

// NewManager opens databases as files below path. Without sync commits
// skip fsync.
func NewManager(path string, sync bool) *Manager {
	return &Manager{
		dbs:  make(map[string]*bbolt.DB),
		path: path,
		sync: sync,
	}
}

func (m *Manager) OpenDB(name string) (database.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, exists := m.dbs[name]; exists {
		return NewDB(db, []byte(name)), nil
	}

	dbPath := filepath.Join(m.path, name+".bolt")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout, NoSync: !m.sync})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", name, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create bucket for %s: %w", name, err), db.Close())
	}

	m.dbs[name] = db
	return NewDB(db, []byte(name)), nil
}

// Close closes every open file. Handles returned by OpenDB fail with
// database.ErrDBClosed afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, db := range m.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database %s: %w", name, err))
		}
		delete(m.dbs, name)
	}
	return errors.Join(errs...)
}
