package pebble

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/LeJamon/goOfferd/internal/storage/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleDB(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) database.DB {
		m := NewManager(t.TempDir(), false)
		t.Cleanup(func() { m.Close() })
		db, err := m.OpenDB("test")
		require.NoError(t, err)
		return db
	})
}

func TestPebbleReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m := NewManager(dir, true)
	db, err := m.OpenDB("offers")
	require.NoError(t, err)
	require.NoError(t, db.Write(ctx, []byte("k"), []byte("v")))
	require.NoError(t, m.CloseDB("offers"))

	_, err = db.Read(ctx, []byte("k"))
	assert.ErrorIs(t, err, database.ErrDBClosed)
	assert.DirExists(t, filepath.Join(dir, "offers"))

	m = NewManager(dir, true)
	defer m.Close()
	db, err = m.OpenDB("offers")
	require.NoError(t, err)
	got, err := db.Read(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	assert.Error(t, m.CloseDB("unknown"))
}
