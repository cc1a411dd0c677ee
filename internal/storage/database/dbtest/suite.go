// Package dbtest holds the behaviour every database.DB backend must share.
package dbtest

import (
	"context"
	"testing"

	"github.com/LeJamon/goOfferd/internal/storage/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. open must return a fresh, empty database.
func Run(t *testing.T, open func(t *testing.T) database.DB) {
	t.Run("read write delete", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)

		_, err := db.Read(ctx, []byte("missing"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)

		require.NoError(t, db.Write(ctx, []byte("k"), []byte("v1")))
		got, err := db.Read(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, db.Write(ctx, []byte("k"), []byte("v2")))
		got, err = db.Read(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		// The returned slice is owned by the caller
		got[0] = 'x'
		again, _ := db.Read(ctx, []byte("k"))
		assert.Equal(t, []byte("v2"), again)

		require.NoError(t, db.Delete(ctx, []byte("k")))
		_, err = db.Read(ctx, []byte("k"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)
	})

	t.Run("batch", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		require.NoError(t, db.Write(ctx, []byte("gone"), []byte("1")))

		require.NoError(t, db.Batch(ctx, []database.BatchOperation{
			database.Put([]byte("a"), []byte("1")),
			database.Put([]byte("b"), []byte("2")),
			database.Del([]byte("gone")),
		}))

		got, err := db.Read(ctx, []byte("b"))
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), got)
		_, err = db.Read(ctx, []byte("gone"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound)

		err = db.Batch(ctx, []database.BatchOperation{
			database.Put([]byte("c"), []byte("3")),
			{Type: database.BatchOpType(99), Key: []byte("d")},
		})
		assert.Error(t, err)
		_, err = db.Read(ctx, []byte("c"))
		assert.ErrorIs(t, err, database.ErrKeyNotFound, "a rejected batch applies nothing")
	})

	t.Run("iterator", func(t *testing.T) {
		ctx := context.Background()
		db := open(t)
		for _, k := range []string{"p/3", "p/1", "q/1", "p/2", "o/9"} {
			require.NoError(t, db.Write(ctx, []byte(k), []byte("v"+k)))
		}

		assert.Equal(t, []string{"p/1", "p/2", "p/3"}, keys(t, db, []byte("p/"), database.PrefixEnd([]byte("p/"))))
		assert.Equal(t, []string{"o/9", "p/1", "p/2", "p/3", "q/1"}, keys(t, db, nil, nil))
		assert.Equal(t, []string{"o/9", "p/1"}, keys(t, db, nil, []byte("p/2")))
		assert.Equal(t, []string{"p/3", "q/1"}, keys(t, db, []byte("p/3"), nil))
		assert.Empty(t, keys(t, db, []byte("r"), nil))

		it, err := db.Iterator(ctx, []byte("q"), nil)
		require.NoError(t, err)
		require.True(t, it.Next())
		assert.Equal(t, []byte("vq/1"), it.Value())
		assert.False(t, it.Next())
		assert.NoError(t, it.Error())
		assert.NoError(t, it.Close())
	})
}

func keys(t *testing.T, db database.DB, start, end []byte) []string {
	t.Helper()
	it, err := db.Iterator(context.Background(), start, end)
	require.NoError(t, err)
	defer it.Close()

	var out []string
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return out
}
