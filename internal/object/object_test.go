package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		id, err := ParseID("ce013625030ba8dba906f756967f9e9ca394464a")
		require.NoError(t, err)
		assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id.Hex())
		assert.False(t, id.IsZero())
	})

	t.Run("WrongLength", func(t *testing.T) {
		_, err := ParseID("ce0136")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("NotHex", func(t *testing.T) {
		_, err := ParseID("zz013625030ba8dba906f756967f9e9ca394464a")
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("Zero", func(t *testing.T) {
		var id ID
		assert.True(t, id.IsZero())
	})
}

// Hashing must agree with git's object ids, so fixed content has a fixed,
// externally known id.
func TestHashKnownAnswers(t *testing.T) {
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", Hash(Blob, nil).Hex())
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", Hash(Blob, []byte("hello\n")).Hex())
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", Hash(Tree, nil).Hex())
}

func TestUnframe(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		typ, body, err := unframe(frame(Blob, []byte("hello\n")))
		require.NoError(t, err)
		assert.Equal(t, Blob, typ)
		assert.Equal(t, []byte("hello\n"), body)
	})

	t.Run("BadType", func(t *testing.T) {
		_, _, err := unframe([]byte("bogus 2\x00hi"))
		assert.ErrorIs(t, err, ErrCorruptObject)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		_, _, err := unframe([]byte("blob 99\x00hi"))
		assert.ErrorIs(t, err, ErrCorruptObject)
	})

	t.Run("NoHeader", func(t *testing.T) {
		_, _, err := unframe([]byte("blob"))
		assert.ErrorIs(t, err, ErrCorruptObject)
	})
}
