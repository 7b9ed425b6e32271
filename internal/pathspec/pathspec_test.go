package pathspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	t.Run("Star", func(t *testing.T) {
		m, err := New([]string{"*.txt"})
		require.NoError(t, err)
		assert.True(t, m.Match("hello.txt"))
		assert.True(t, m.Match("docs/readme.txt"), "slashless patterns match basenames")
		assert.False(t, m.Match("hello.go"))
	})

	t.Run("QuestionMark", func(t *testing.T) {
		m, err := New([]string{"bye.t??"})
		require.NoError(t, err)
		assert.True(t, m.Match("bye.txt"))
		assert.False(t, m.Match("bye.t"))
	})

	t.Run("CharacterClass", func(t *testing.T) {
		m, err := New([]string{"[byehlo]*.txt"})
		require.NoError(t, err)
		assert.True(t, m.Match("bye.txt"))
		assert.True(t, m.Match("hello.txt"))
		assert.False(t, m.Match("adios.txt"))
	})

	t.Run("Union", func(t *testing.T) {
		m, err := New([]string{"*.go", "*.txt"})
		require.NoError(t, err)
		assert.True(t, m.Match("a.go"))
		assert.True(t, m.Match("b.txt"))
		assert.False(t, m.Match("c.md"))
	})

	t.Run("SlashPatternIsAnchored", func(t *testing.T) {
		m, err := New([]string{"docs/*.txt"})
		require.NoError(t, err)
		assert.True(t, m.Match("docs/readme.txt"))
		assert.False(t, m.Match("readme.txt"))
		assert.False(t, m.Match("docs/deep/readme.txt"), "* does not cross slashes")
	})

	t.Run("Empty", func(t *testing.T) {
		m, err := New(nil)
		require.NoError(t, err)
		assert.True(t, m.Empty())
		assert.False(t, m.Match("anything"))
	})

	t.Run("BadPattern", func(t *testing.T) {
		_, err := New([]string{"[unclosed"})
		assert.Error(t, err)
	})
}
