package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/object"
)

func blobID(t *testing.T, content string) object.ID {
	t.Helper()
	return object.Hash(object.Blob, []byte(content))
}

func TestTableOrdering(t *testing.T) {
	var tbl table

	// Insertion order must not matter.
	for _, p := range []string{"zoo.txt", "a/b.txt", "a.txt", "mid.txt"} {
		tbl.upsert(NewEntry(p, blobID(t, p), ModeRegular))
	}

	var got []string
	for _, e := range tbl.snapshot() {
		got = append(got, e.Path)
	}
	assert.Equal(t, []string{"a.txt", "a/b.txt", "mid.txt", "zoo.txt"}, got)
}

func TestTableUpsertReplaces(t *testing.T) {
	var tbl table

	tbl.upsert(NewEntry("file.txt", blobID(t, "one"), ModeRegular))
	tbl.upsert(NewEntry("file.txt", blobID(t, "two"), ModeExecutable))

	require.Equal(t, 1, tbl.len())
	e, ok := tbl.get("file.txt", StageNormal)
	require.True(t, ok)
	assert.Equal(t, blobID(t, "two"), e.ID)
	assert.Equal(t, ModeExecutable, e.Mode)
}

func TestTableStages(t *testing.T) {
	var tbl table

	ours := NewEntry("conflicted.txt", blobID(t, "ours"), ModeRegular)
	ours.Stage = StageOurs
	theirs := NewEntry("conflicted.txt", blobID(t, "theirs"), ModeRegular)
	theirs.Stage = StageTheirs

	tbl.upsert(ours)
	tbl.upsert(theirs)
	require.Equal(t, 2, tbl.len())
	assert.True(t, tbl.unmerged())

	// No stage-0 entry exists while the conflict is unresolved.
	_, ok := tbl.get("conflicted.txt", StageNormal)
	assert.False(t, ok)
	assert.True(t, tbl.contains("conflicted.txt"))

	// Resolving at stage 0 evicts the conflict stages.
	tbl.upsert(NewEntry("conflicted.txt", blobID(t, "resolved"), ModeRegular))
	assert.Equal(t, 1, tbl.len())
	assert.False(t, tbl.unmerged())
}

func TestTableRemove(t *testing.T) {
	var tbl table
	tbl.upsert(NewEntry("keep.txt", blobID(t, "keep"), ModeRegular))
	tbl.upsert(NewEntry("drop.txt", blobID(t, "drop"), ModeRegular))

	assert.True(t, tbl.remove("drop.txt"))
	assert.False(t, tbl.remove("drop.txt"))
	assert.Equal(t, 1, tbl.len())
	assert.True(t, tbl.contains("keep.txt"))
}

func TestTableSnapshotIsolation(t *testing.T) {
	var tbl table
	tbl.upsert(NewEntry("a.txt", blobID(t, "a"), ModeRegular))
	tbl.upsert(NewEntry("b.txt", blobID(t, "b"), ModeRegular))

	snap := tbl.snapshot()
	tbl.remove("a.txt")
	tbl.upsert(NewEntry("c.txt", blobID(t, "c"), ModeRegular))

	require.Len(t, snap, 2)
	assert.Equal(t, "a.txt", snap[0].Path)
	assert.Equal(t, "b.txt", snap[1].Path)
}

func TestEntryValidate(t *testing.T) {
	valid := NewEntry("ok.txt", blobID(t, "ok"), ModeRegular)
	require.NoError(t, valid.Validate())

	cases := map[string]Entry{
		"EmptyPath":     {Path: "", ID: blobID(t, "x"), Mode: ModeRegular},
		"LeadingSlash":  {Path: "/abs.txt", ID: blobID(t, "x"), Mode: ModeRegular},
		"TrailingSlash": {Path: "dir/", ID: blobID(t, "x"), Mode: ModeRegular},
		"DotDot":        {Path: "../escape.txt", ID: blobID(t, "x"), Mode: ModeRegular},
		"ZeroID":        {Path: "ok.txt", Mode: ModeRegular},
		"TreeMode":      {Path: "ok.txt", ID: blobID(t, "x"), Mode: ModeTree},
		"BogusMode":     {Path: "ok.txt", ID: blobID(t, "x"), Mode: 0o777},
		"BadStage":      {Path: "ok.txt", ID: blobID(t, "x"), Mode: ModeRegular, Stage: 4},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.Validate(), ErrInvalidEntry)
		})
	}
}
