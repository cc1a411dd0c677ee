// Package storage selects the key/value backend the offer store runs on.
package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/LeJamon/goOfferd/internal/storage/database/bbolt"
	"github.com/LeJamon/goOfferd/internal/storage/database/leveldb"
	"github.com/LeJamon/goOfferd/internal/storage/database/pebble"
)

// Backend names accepted by Open
const (
	BackendMemory  = "memory"
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendBbolt   = "bbolt"
)

// Open returns a database manager for backend rooted at path. The memory
// backend ignores path and sync.
func Open(backend, path string, sync bool) (database.Manager, error) {
	backend = strings.ToLower(backend)
	if backend != BackendMemory {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	switch backend {
	case BackendMemory:
		return database.NewMemManager(), nil
	case BackendPebble:
		return pebble.NewManager(path, sync), nil
	case BackendLevelDB:
		return leveldb.NewManager(path, sync), nil
	case BackendBbolt:
		return bbolt.NewManager(path, sync), nil
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrUnknownBackend, backend)
	}
}
