package object

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStore(t *testing.T) (*FileStore, func()) {
	dir, err := os.MkdirTemp("", "keel-objects")
	require.NoError(t, err)

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)

	store, err := NewFileStore(db, Options{Root: dir, CacheSize: 8})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.RemoveAll(dir)
	}
	return store, cleanup
}

func TestMemStore(t *testing.T) {
	store := NewMemStore()

	id, err := store.HashAndStore(Blob, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.Hex())
	assert.True(t, store.Exists(id))

	typ, body, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, Blob, typ)
	assert.Equal(t, []byte("hello\n"), body)

	// Storing the same content again is a no-op.
	again, err := store.HashAndStore(Blob, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, store.Len())

	_, _, err = store.Load(Hash(Blob, []byte("other")))
	assert.ErrorIs(t, err, ErrMissingObject)
	assert.False(t, store.Exists(Hash(Blob, []byte("other"))))
}

func TestFileStore(t *testing.T) {
	store, cleanup := setupFileStore(t)
	defer cleanup()

	t.Run("StoreAndLoad", func(t *testing.T) {
		id, err := store.HashAndStore(Blob, []byte("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.Hex())

		typ, body, err := store.Load(id)
		require.NoError(t, err)
		assert.Equal(t, Blob, typ)
		assert.Equal(t, []byte("hello\n"), body)
	})

	t.Run("LoadBypassingCache", func(t *testing.T) {
		id, err := store.HashAndStore(Blob, []byte("cold read\n"))
		require.NoError(t, err)

		// A fresh FileStore over the same directory has an empty cache,
		// forcing the zlib file path.
		cold, err := NewFileStore(nil, Options{Root: store.root})
		require.NoError(t, err)

		typ, body, err := cold.Load(id)
		require.NoError(t, err)
		assert.Equal(t, Blob, typ)
		assert.Equal(t, []byte("cold read\n"), body)
	})

	t.Run("Exists", func(t *testing.T) {
		id, err := store.HashAndStore(Blob, []byte("present"))
		require.NoError(t, err)
		assert.True(t, store.Exists(id))
		assert.False(t, store.Exists(Hash(Blob, []byte("absent"))))
	})

	t.Run("Missing", func(t *testing.T) {
		_, _, err := store.Load(Hash(Blob, []byte("never stored")))
		assert.ErrorIs(t, err, ErrMissingObject)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		id, err := store.HashAndStore(Blob, []byte("to be mangled"))
		require.NoError(t, err)

		path := store.objectPath(id)
		require.NoError(t, os.Chmod(path, 0644))
		require.NoError(t, os.WriteFile(path, []byte("not zlib at all"), 0644))

		cold, err := NewFileStore(nil, Options{Root: store.root})
		require.NoError(t, err)
		_, _, err = cold.Load(id)
		assert.ErrorIs(t, err, ErrCorruptObject)
	})

	t.Run("FanOutLayout", func(t *testing.T) {
		id, err := store.HashAndStore(Blob, []byte("layout"))
		require.NoError(t, err)

		hex := id.Hex()
		_, err = os.Stat(filepath.Join(store.root, hex[:2], hex[2:]))
		assert.NoError(t, err)
	})
}
