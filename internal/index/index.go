// Package index implements the staging area of a keel repository: the
// sorted table of staged entries, its on-disk binary format, and the
// conversion between the flat table and hierarchical tree objects.
package index

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"keel/internal/object"
	"keel/internal/pathspec"
)

// WorkFile is one path reported by a working-tree enumerator.
type WorkFile struct {
	Path string
	Mode Mode
	Size int64
}

// Worktree is the narrow working-tree interface consumed by bulk add. The
// index never walks the filesystem itself.
type Worktree interface {
	// List enumerates every file under the work tree, slash-separated,
	// relative to the root.
	List() ([]WorkFile, error)

	// Stat describes a single path.
	Stat(path string) (WorkFile, error)

	// Read returns the content to stage for a path. For symlinks this is
	// the link target.
	Read(path string) ([]byte, error)
}

// Options fixes an Index's bindings at construction.
type Options struct {
	// Path is the on-disk index file. Empty for a purely in-memory index,
	// which then cannot Read or Write.
	Path string

	// Store is the bound object database. Nil for a bare index, which
	// disables Add, AddAll, WriteTree and ReadTree.
	Store object.Store

	// Worktree supplies content for Add and candidate paths for AddAll.
	Worktree Worktree

	// ReadOnly forbids Write even when Path is set.
	ReadOnly bool
}

// Index is the staging area. It is not safe for concurrent use; callers
// sharing an on-disk index across processes rely on Write's atomic
// rename.
type Index struct {
	opts Options
	tbl  table
}

// New creates an empty index with the given bindings.
func New(opts Options) *Index {
	return &Index{opts: opts}
}

// Open creates an index bound to an existing index file and loads it.
// With no object store in opts the result is bare: in-memory operations
// work, object-store operations fail with ErrNoBackingStore.
func Open(path string, opts Options) (*Index, error) {
	opts.Path = path
	idx := &Index{opts: opts}
	if err := idx.Read(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Len reports the number of entries across all stages.
func (idx *Index) Len() int {
	return idx.tbl.len()
}

// Get returns the stage-0 entry for path.
func (idx *Index) Get(path string) (Entry, error) {
	return idx.GetStage(path, StageNormal)
}

// GetStage returns the entry for (path, stage).
func (idx *Index) GetStage(path string, stage Stage) (Entry, error) {
	e, ok := idx.tbl.get(path, stage)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return e, nil
}

// ByIndex returns the i'th entry in sorted order. Negative positions are
// rejected as invalid rather than wrapped.
func (idx *Index) ByIndex(i int) (Entry, error) {
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, i)
	}
	if i >= idx.tbl.len() {
		return Entry{}, fmt.Errorf("%w: position %d, length %d", ErrOutOfRange, i, idx.tbl.len())
	}
	return idx.tbl.entries[i], nil
}

// Contains reports whether any stage of path is staged.
func (idx *Index) Contains(path string) bool {
	return idx.tbl.contains(path)
}

// Entries returns a sorted snapshot. Mutating the index afterwards does
// not affect a snapshot already taken.
func (idx *Index) Entries() []Entry {
	return idx.tbl.snapshot()
}

// AddEntry validates e and inserts or replaces it at (path, stage).
func (idx *Index) AddEntry(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	idx.tbl.upsert(e)
	return nil
}

// Add stages the working-tree content of path: the blob is hashed and
// stored, and a stage-0 entry with fresh metadata replaces whatever was
// staged for the path before.
func (idx *Index) Add(path string) error {
	e, err := idx.stageFromWorktree(path)
	if err != nil {
		return err
	}
	idx.tbl.upsert(e)
	return nil
}

// AddAll stages every working-tree file matching the pattern set. The
// table is untouched unless every matched path hashes successfully, so a
// mid-walk failure cannot leave a half-applied add.
func (idx *Index) AddAll(patterns []string) error {
	if idx.opts.Store == nil || idx.opts.Worktree == nil {
		return ErrNoBackingStore
	}
	m, err := pathspec.New(patterns)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	files, err := idx.opts.Worktree.List()
	if err != nil {
		return fmt.Errorf("listing work tree: %w", err)
	}

	var staged []Entry
	for _, f := range files {
		if !m.Match(f.Path) {
			continue
		}
		e, err := idx.stageFromWorktree(f.Path)
		if err != nil {
			return err
		}
		staged = append(staged, e)
	}
	for _, e := range staged {
		idx.tbl.upsert(e)
	}
	return nil
}

func (idx *Index) stageFromWorktree(path string) (Entry, error) {
	if idx.opts.Store == nil || idx.opts.Worktree == nil {
		return Entry{}, ErrNoBackingStore
	}
	if err := validatePath(path); err != nil {
		return Entry{}, err
	}

	f, err := idx.opts.Worktree.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q: %v", ErrNotFound, path, err)
	}
	content, err := idx.opts.Worktree.Read(path)
	if err != nil {
		return Entry{}, fmt.Errorf("reading %q: %w", path, err)
	}
	id, err := idx.opts.Store.HashAndStore(object.Blob, content)
	if err != nil {
		return Entry{}, fmt.Errorf("storing blob for %q: %w", path, err)
	}

	e := NewEntry(path, id, f.Mode)
	e.Size = uint32(f.Size)
	return e, nil
}

// Update fetches the stage-0 entry for path, applies fn to a copy, and
// writes the result back into the table slot. This is the point at which
// an edit becomes visible; editing a detached Entry changes nothing.
// Identity fields are fixed: fn must not change Path or Stage.
func (idx *Index) Update(path string, fn func(*Entry) error) error {
	i, ok := idx.tbl.search(path, StageNormal)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	e := idx.tbl.entries[i]
	if err := fn(&e); err != nil {
		return err
	}
	if e.Path != path || e.Stage != StageNormal {
		return fmt.Errorf("%w: update may not change path or stage", ErrInvalidEntry)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	idx.tbl.entries[i] = e
	return nil
}

// Remove unstages every stage of path.
func (idx *Index) Remove(path string) error {
	if !idx.tbl.remove(path) {
		return fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return nil
}

// RemoveAll unstages every entry matching the pattern set. Matching
// nothing is not an error, and applying the same patterns twice leaves
// the same table.
func (idx *Index) RemoveAll(patterns []string) error {
	m, err := pathspec.New(patterns)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	for _, e := range idx.tbl.snapshot() {
		if m.Match(e.Path) {
			idx.tbl.remove(e.Path)
		}
	}
	return nil
}

// Clear empties the table in memory. A previously written on-disk copy is
// untouched until the next Write.
func (idx *Index) Clear() {
	idx.tbl.clear()
}

// Read replaces in-memory state by re-parsing the index file, discarding
// unwritten changes. The table is swapped only after the whole file
// validates.
func (idx *Index) Read() error {
	if idx.opts.Path == "" {
		return ErrReadOnlyIndex
	}
	data, err := os.ReadFile(idx.opts.Path)
	if err != nil {
		return fmt.Errorf("reading index file: %w", err)
	}
	entries, err := decodeIndex(data)
	if err != nil {
		return err
	}
	idx.tbl = table{entries: entries}
	return nil
}

// Write serializes the table to the index file atomically.
func (idx *Index) Write() error {
	if idx.opts.Path == "" || idx.opts.ReadOnly {
		return ErrReadOnlyIndex
	}
	if err := writeIndexFile(idx.opts.Path, encodeIndex(idx.tbl.entries)); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrReadOnlyIndex, err)
		}
		return err
	}
	return nil
}

// WriteTree builds the tree hierarchy for the staged entries in the bound
// object store and returns the root tree id. The same table always yields
// the same id.
func (idx *Index) WriteTree() (object.ID, error) {
	if idx.opts.Store == nil {
		return object.ID{}, ErrNoBackingStore
	}
	return idx.WriteTreeTo(idx.opts.Store)
}

// WriteTreeTo runs the same algorithm but persists the new tree objects
// into target, letting a tree computed from one repository's staged
// content land in another repository's object space. Blobs the tree
// references are not copied; loading them later from a target that lacks
// them fails with the store's missing-object error.
func (idx *Index) WriteTreeTo(target object.Store) (object.ID, error) {
	if target == nil {
		return object.ID{}, fmt.Errorf("%w: nil target store", ErrInvalidArgument)
	}
	if idx.tbl.unmerged() {
		return object.ID{}, ErrUnmergedEntries
	}
	return buildTree(idx.tbl.entries, "", target)
}

// ReadTree replaces the staged entries with the flattened contents of the
// tree at id, all at stage 0. The replacement table is built fully before
// it is swapped in, so a failed read leaves the old state intact, and the
// on-disk file is untouched until an explicit Write.
func (idx *Index) ReadTree(id object.ID) error {
	if idx.opts.Store == nil {
		return ErrNoBackingStore
	}
	var entries []Entry
	if err := flattenTree(id, "", idx.opts.Store, &entries); err != nil {
		return err
	}
	// Canonically ordered trees flatten to already-sorted paths; sorting
	// here keeps the table invariant even for oddly ordered foreign trees.
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].less(&entries[b])
	})
	// A corrupt tree can still carry rows no valid tree would: malformed
	// names or the same name twice. Reject them here so the table's
	// invariants cannot be broken by foreign objects.
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("%w: tree %s: %v", object.ErrCorruptObject, id.Hex(), err)
		}
		if i > 0 && entries[i-1].Path == entries[i].Path {
			return fmt.Errorf("%w: tree %s: duplicate path %q", object.ErrCorruptObject, id.Hex(), entries[i].Path)
		}
	}
	idx.tbl = table{entries: entries}
	return nil
}
